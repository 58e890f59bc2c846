// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities root. Declared as a var so tests
// can substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const pubmedTool = "paper-aggregator"

// PubMed queries NCBI E-utilities: esearch for ids, then esummary for the
// document summaries.
type PubMed struct {
	client
	apiKey string
	email  string
}

// NewPubMed returns the PubMed adapter. NCBI allows 3 requests per second
// without an API key and 10 with one.
func NewPubMed(hc *http.Client, cfg types.HTTPConfig, apiKey, email string, log *zap.Logger) *PubMed {
	limit := rate.Limit(3)
	if apiKey != "" {
		limit = rate.Limit(10)
	}
	return &PubMed{
		client: newClient("pubmed", hc, cfg, limit, log),
		apiKey: apiKey,
		email:  email,
	}
}

// Name returns the source identifier.
func (p *PubMed) Name() string { return p.name }

// FetchPapers returns at most limit records for the query.
func (p *PubMed) FetchPapers(ctx context.Context, query string, limit int) ([]types.Record, error) {
	q := cleanText(query)
	if q == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}

	ids, err := p.search(ctx, q, max(limit, 1))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		p.log.Info("fetched papers", zap.String("query", q), zap.Int("count", 0))
		return nil, nil
	}

	docs, err := p.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	var records []types.Record
	for _, d := range docs {
		if r, ok := p.build(d.fields()); ok {
			records = append(records, r)
		}
	}
	p.log.Info("fetched papers", zap.String("query", q), zap.Int("count", len(records)))
	return records, nil
}

func (p *PubMed) params() url.Values {
	v := url.Values{"db": {"pubmed"}, "tool": {pubmedTool}}
	if p.email != "" {
		v.Set("email", p.email)
	}
	if p.apiKey != "" {
		v.Set("api_key", p.apiKey)
	}
	return v
}

func (p *PubMed) search(ctx context.Context, query string, limit int) ([]string, error) {
	v := p.params()
	v.Set("term", query)
	v.Set("retmax", strconv.Itoa(limit))
	v.Set("retmode", "json")

	body, err := p.get(ctx, pubmedAPIBase+"/esearch.fcgi?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing PubMed esearch response: %w", err)
	}
	return resp.Result.IDList, nil
}

func (p *PubMed) summaries(ctx context.Context, ids []string) ([]docSum, error) {
	v := p.params()
	v.Set("id", strings.Join(ids, ","))
	v.Set("retmode", "xml")

	body, err := p.get(ctx, pubmedAPIBase+"/esummary.fcgi?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp esummaryResult
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing PubMed esummary response: %w", err)
	}
	return resp.Docs, nil
}

// E-utilities response structures.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResult struct {
	XMLName xml.Name `xml:"eSummaryResult"`
	Docs    []docSum `xml:"DocSum"`
}

type docSum struct {
	ID    string    `xml:"Id"`
	Items []docItem `xml:"Item"`
}

type docItem struct {
	Name  string    `xml:"Name,attr"`
	Value string    `xml:",chardata"`
	Items []docItem `xml:"Item"`
}

func (d docSum) item(name string) (docItem, bool) {
	for _, it := range d.Items {
		if it.Name == name {
			return it, true
		}
	}
	return docItem{}, false
}

func (d docSum) value(name string) string {
	it, _ := d.item(name)
	return strings.TrimSpace(it.Value)
}

func (d docSum) fields() types.RecordFields {
	pmid := strings.TrimSpace(d.ID)
	f := types.RecordFields{
		Title:         cleanText(d.value("Title")),
		PublishedDate: d.value("PubDate"),
		Journal:       cleanText(d.value("Source")),
		Volume:        d.value("Volume"),
		Issue:         d.value("Issue"),
		Pages:         d.value("Pages"),
		DOI:           d.value("DOI"),
		PubMedID:      pmid,
	}
	if pmid != "" {
		f.URL = "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}
	if list, ok := d.item("AuthorList"); ok {
		for _, a := range list.Items {
			if a.Name == "Author" {
				f.Authors = append(f.Authors, cleanText(a.Value))
			}
		}
	}
	if f.DOI == "" {
		if ids, ok := d.item("ArticleIds"); ok {
			for _, id := range ids.Items {
				if id.Name == "doi" {
					f.DOI = strings.TrimSpace(id.Value)
					break
				}
			}
		}
	}
	return f
}
