// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper endpoint. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper"

const semanticMaxResults = 100

var semanticFields = strings.Join([]string{
	"title", "authors", "year", "publicationDate", "abstract",
	"url", "venue", "citationCount", "referenceCount", "fieldsOfStudy",
	"publicationTypes", "publicationVenue", "externalIds", "openAccessPdf",
}, ",")

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	client
	apiKey string
}

// NewSemanticScholar returns the Semantic Scholar adapter. apiKey may be
// empty.
func NewSemanticScholar(hc *http.Client, cfg types.HTTPConfig, apiKey string, log *zap.Logger) *SemanticScholar {
	return &SemanticScholar{
		client: newClient("semantic_scholar", hc, cfg, rate.Limit(10), log),
		apiKey: apiKey,
	}
}

// Name returns the source identifier.
func (s *SemanticScholar) Name() string { return s.name }

// FetchPapers runs a relevance search and returns at most
// min(limit, 100) records.
func (s *SemanticScholar) FetchPapers(ctx context.Context, query string, limit int) ([]types.Record, error) {
	return s.search(ctx, query, limit, 0)
}

// FetchPapersInYear is FetchPapers restricted to one publication year by
// the API's year parameter.
func (s *SemanticScholar) FetchPapersInYear(ctx context.Context, query string, limit, year int) ([]types.Record, error) {
	return s.search(ctx, query, limit, year)
}

// FetchByID looks up one paper by any id the Graph API accepts: a
// Semantic Scholar id, or a prefixed one such as "DOI:10.1/x",
// "ARXIV:1706.03762" or "PMID:123".
func (s *SemanticScholar) FetchByID(ctx context.Context, id string) (types.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Record{}, fmt.Errorf("empty Semantic Scholar paper id")
	}
	params := url.Values{"fields": {semanticFields}}
	body, err := s.get(ctx, semanticAPIBase+"/"+url.PathEscape(id)+"?"+params.Encode(), s.header())
	if err != nil {
		return types.Record{}, err
	}

	var p semanticPaper
	if err := json.Unmarshal(body, &p); err != nil {
		return types.Record{}, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	r, ok := s.build(p.fields())
	if !ok {
		return types.Record{}, fmt.Errorf("semantic scholar paper %s has no usable title", id)
	}
	return r, nil
}

func (s *SemanticScholar) search(ctx context.Context, query string, limit, year int) ([]types.Record, error) {
	q := cleanText(query)
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(min(max(limit, 1), semanticMaxResults))},
		"fields": {semanticFields},
	}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	body, err := s.get(ctx, semanticAPIBase+"/search?"+params.Encode(), s.header())
	if err != nil {
		return nil, err
	}

	var sr semanticResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var records []types.Record
	for _, p := range sr.Data {
		if r, ok := s.build(p.fields()); ok {
			records = append(records, r)
		}
	}
	s.log.Info("fetched papers", zap.String("query", q), zap.Int("year", year), zap.Int("count", len(records)))
	return records, nil
}

func (s *SemanticScholar) header() http.Header {
	if s.apiKey == "" {
		return nil
	}
	return http.Header{"x-api-key": {s.apiKey}}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID          string              `json:"paperId"`
	Title            string              `json:"title"`
	Abstract         string              `json:"abstract"`
	URL              string              `json:"url"`
	Venue            string              `json:"venue"`
	Year             int                 `json:"year"`
	PublicationDate  string              `json:"publicationDate"`
	CitationCount    *int                `json:"citationCount"`
	FieldsOfStudy    []string            `json:"fieldsOfStudy"`
	Authors          []semanticAuthor    `json:"authors"`
	ExternalIDs      semanticExternalIDs `json:"externalIds"`
	PublicationVenue *struct {
		Name string `json:"name"`
	} `json:"publicationVenue"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI    string `json:"DOI"`
	ArXiv  string `json:"ArXiv"`
	PubMed string `json:"PubMed"`
}

func (p semanticPaper) fields() types.RecordFields {
	f := types.RecordFields{
		Title:             cleanText(p.Title),
		PublishedDate:     p.PublicationDate,
		Abstract:          cleanText(p.Abstract),
		URL:               p.URL,
		DOI:               p.ExternalIDs.DOI,
		Keywords:          cleanAll(p.FieldsOfStudy),
		Citations:         p.CitationCount,
		Journal:           cleanText(p.Venue),
		ArxivID:           p.ExternalIDs.ArXiv,
		PubMedID:          p.ExternalIDs.PubMed,
		SemanticScholarID: p.PaperID,
	}
	if f.PublishedDate == "" && p.Year > 0 {
		f.PublishedDate = strconv.Itoa(p.Year)
	}
	if f.Journal == "" && p.PublicationVenue != nil {
		f.Journal = cleanText(p.PublicationVenue.Name)
	}
	if p.OpenAccessPDF != nil {
		f.PDFURL = p.OpenAccessPDF.URL
	}
	for _, a := range p.Authors {
		f.Authors = append(f.Authors, cleanText(a.Name))
	}
	return f
}
