// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arXiv asks clients to wait three seconds between calls.
const arxivInterval = 3 * time.Second

const arxivMaxResults = 200

var arxivFieldPrefixes = []string{"ti:", "au:", "abs:", "cat:", "all:", "id:"}

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	client
}

// NewArxiv returns the arXiv adapter.
func NewArxiv(hc *http.Client, cfg types.HTTPConfig, log *zap.Logger) *Arxiv {
	return &Arxiv{client: newClient("arxiv", hc, cfg, rate.Every(arxivInterval), log)}
}

// Name returns the source identifier.
func (a *Arxiv) Name() string { return a.name }

// FetchPapers searches titles and abstracts for query, unless the query
// already names arXiv fields, and returns at most min(limit, 200) records.
func (a *Arxiv) FetchPapers(ctx context.Context, query string, limit int) ([]types.Record, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(min(max(limit, 1), arxivMaxResults))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	records, err := a.query(ctx, params)
	if err != nil {
		return nil, err
	}
	a.log.Info("fetched papers", zap.String("query", query), zap.Int("count", len(records)))
	return records, nil
}

// FetchByID looks up one paper by arXiv id, with or without a version
// suffix.
func (a *Arxiv) FetchByID(ctx context.Context, id string) (types.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Record{}, fmt.Errorf("empty arXiv id")
	}
	records, err := a.query(ctx, url.Values{"id_list": {id}, "max_results": {"1"}})
	if err != nil {
		return types.Record{}, err
	}
	if len(records) == 0 {
		return types.Record{}, fmt.Errorf("arXiv paper %s not found", id)
	}
	return records[0], nil
}

func (a *Arxiv) query(ctx context.Context, params url.Values) ([]types.Record, error) {
	body, err := a.get(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var records []types.Record
	for _, e := range feed.Entries {
		if r, ok := a.build(arxivFields(e)); ok {
			records = append(records, r)
		}
	}
	return records, nil
}

// buildArxivQuery searches title and abstract for the phrase unless the
// caller already used an arXiv field prefix.
func buildArxivQuery(query string) string {
	q := cleanText(query)
	if q == "" {
		return ""
	}
	lower := strings.ToLower(q)
	for _, p := range arxivFieldPrefixes {
		if strings.Contains(lower, p) {
			return q
		}
	}
	q = strings.ReplaceAll(q, `"`, "")
	return fmt.Sprintf(`ti:"%s" OR abs:"%s"`, q, q)
}

func arxivFields(e *atom.Entry) types.RecordFields {
	f := types.RecordFields{
		Title:         cleanText(e.Title),
		PublishedDate: e.Published,
		Abstract:      cleanText(e.Summary),
		URL:           e.ID,
		ArxivID:       extractArxivID(e.ID),
	}
	for _, p := range e.Authors {
		if p != nil {
			f.Authors = append(f.Authors, cleanText(p.Name))
		}
	}
	for _, l := range e.Links {
		if l != nil && (l.Type == "application/pdf" || l.Title == "pdf") {
			f.PDFURL = l.Href
			break
		}
	}
	for _, c := range e.Categories {
		if c != nil {
			f.Keywords = append(f.Keywords, c.Term)
		}
	}
	if arx, ok := e.Extensions["arxiv"]; ok {
		if v := arx["doi"]; len(v) > 0 {
			f.DOI = strings.TrimSpace(v[0].Value)
		}
		if v := arx["journal_ref"]; len(v) > 0 {
			f.Journal = cleanText(v[0].Value)
		}
	}
	return f
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
