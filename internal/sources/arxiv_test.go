// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/abc</id>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on
      complex recurrent networks.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>Advances in Neural Information Processing Systems 30</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <published>2023-01-01T00:00:00Z</published>
    <title>   </title>
    <summary>Entry without a usable title.</summary>
  </entry>
</feed>`

func newTestArxiv(ts *httptest.Server) *Arxiv {
	a := NewArxiv(ts.Client(), types.HTTPConfig{UserAgent: "test/0.1"}, nil)
	a.limiter = rate.NewLimiter(rate.Inf, 1)
	return a
}

func withArxivServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() { arxivAPIBase = old })
	return ts
}

func TestArxivFetchPapers(t *testing.T) {
	var gotQuery, gotMax, gotUA string
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		gotMax = r.URL.Query().Get("max_results")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeed)
	})

	records, err := newTestArxiv(ts).FetchPapers(context.Background(), "attention", 5)
	if err != nil {
		t.Fatalf("FetchPapers: %v", err)
	}
	if gotQuery != `ti:"attention" OR abs:"attention"` {
		t.Errorf("search_query = %q", gotQuery)
	}
	if gotMax != "5" {
		t.Errorf("max_results = %q, want 5", gotMax)
	}
	if gotUA != "test/0.1" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (blank title dropped)", len(records))
	}

	r := records[0]
	checks := []struct{ field, got, want string }{
		{"title", r.Title(), "Attention Is All You Need"},
		{"abstract", r.Abstract(), "The dominant sequence transduction models are based on complex recurrent networks."},
		{"source", r.Source(), "arxiv"},
		{"published", r.PublishedDate(), "2017-06-12T17:57:34Z"},
		{"url", r.URL(), "http://arxiv.org/abs/1706.03762v7"},
		{"pdf", r.PDFURL(), "http://arxiv.org/pdf/1706.03762v7"},
		{"arxiv id", r.ArxivID(), "1706.03762"},
		{"doi", r.DOI(), "10.48550/arXiv.1706.03762"},
		{"journal", r.Journal(), "Advances in Neural Information Processing Systems 30"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if a := r.Authors(); len(a) != 2 || a[0] != "Ashish Vaswani" || a[1] != "Noam Shazeer" {
		t.Errorf("authors = %v", a)
	}
	if k := r.Keywords(); len(k) != 2 || k[0] != "cs.CL" || k[1] != "cs.LG" {
		t.Errorf("keywords = %v", k)
	}
}

func TestArxivMaxResultsCapped(t *testing.T) {
	var gotMax string
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	})

	records, err := newTestArxiv(ts).FetchPapers(context.Background(), "x", 1000)
	if err != nil {
		t.Fatalf("FetchPapers: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records from empty feed", len(records))
	}
	if gotMax != "200" {
		t.Errorf("max_results = %q, want 200", gotMax)
	}
}

func TestArxivHTTPError(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	if _, err := newTestArxiv(ts).FetchPapers(context.Background(), "x", 5); err == nil {
		t.Fatal("expected error for HTTP 400")
	}
}

func TestArxivMalformedFeed(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>rate limited</body></html>`)
	})
	if _, err := newTestArxiv(ts).FetchPapers(context.Background(), "x", 5); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestArxivEmptyQuery(t *testing.T) {
	a := NewArxiv(nil, types.HTTPConfig{}, nil)
	if _, err := a.FetchPapers(context.Background(), "  ", 5); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestArxivFetchByID(t *testing.T) {
	var idList, searchQuery string
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		idList = r.URL.Query().Get("id_list")
		searchQuery = r.URL.Query().Get("search_query")
		fmt.Fprint(w, arxivFeed)
	})

	r, err := newTestArxiv(ts).FetchByID(context.Background(), " 1706.03762v7 ")
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	if idList != "1706.03762v7" || searchQuery != "" {
		t.Errorf("id_list = %q, search_query = %q", idList, searchQuery)
	}
	if r.ArxivID() != "1706.03762" || r.Title() != "Attention Is All You Need" {
		t.Errorf("record = %v", r)
	}
}

func TestArxivFetchByIDNotFound(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	})
	a := newTestArxiv(ts)
	if _, err := a.FetchByID(context.Background(), "9999.99999"); err == nil {
		t.Error("expected error for an unknown id")
	}
	if _, err := a.FetchByID(context.Background(), ""); err == nil {
		t.Error("expected error for an empty id")
	}
}

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"graph neural networks", `ti:"graph neural networks" OR abs:"graph neural networks"`},
		{"  spaced   out ", `ti:"spaced out" OR abs:"spaced out"`},
		{`say "hello"`, `ti:"say hello" OR abs:"say hello"`},
		{"au:Vaswani", "au:Vaswani"},
		{"cat:cs.AI AND ti:attention", "cat:cs.AI AND ti:attention"},
		{"ID:1706.03762", "ID:1706.03762"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := buildArxivQuery(tt.in); got != tt.want {
			t.Errorf("buildArxivQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/hep-th/9901001v2", "hep-th/9901001"},
		{"http://example.com/paper", ""},
	}
	for _, tt := range tests {
		if got := extractArxivID(tt.in); got != tt.want {
			t.Errorf("extractArxivID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
