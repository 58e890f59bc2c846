// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

const esummaryFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE eSummaryResult PUBLIC "-//NLM//DTD esummary v1 20041029//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20041029/esummary-v1.dtd">
<eSummaryResult>
<DocSum>
	<Id>31452104</Id>
	<Item Name="PubDate" Type="Date">2019 Aug 26</Item>
	<Item Name="Source" Type="String">Nat Methods</Item>
	<Item Name="AuthorList" Type="List">
		<Item Name="Author" Type="String">Smith J</Item>
		<Item Name="Author" Type="String">Doe A</Item>
	</Item>
	<Item Name="Title" Type="String">Deep learning for  cellular image analysis.</Item>
	<Item Name="Volume" Type="String">16</Item>
	<Item Name="Issue" Type="String">12</Item>
	<Item Name="Pages" Type="String">1233-1246</Item>
	<Item Name="ArticleIds" Type="List">
		<Item Name="pubmed" Type="String">31452104</Item>
		<Item Name="doi" Type="String">10.1038/s41592-019-0403-1</Item>
	</Item>
</DocSum>
<DocSum>
	<Id>30000001</Id>
	<Item Name="PubDate" Type="Date">2018</Item>
	<Item Name="Title" Type="String"></Item>
</DocSum>
</eSummaryResult>`

func newTestPubMed(apiKey, email string) *PubMed {
	p := NewPubMed(nil, types.HTTPConfig{}, apiKey, email, nil)
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

func withPubMedServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	old := pubmedAPIBase
	pubmedAPIBase = ts.URL
	t.Cleanup(func() { pubmedAPIBase = old })
	return ts
}

func TestPubMedFetchPapers(t *testing.T) {
	var searchParams, summaryParams map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		searchParams = r.URL.Query()
		fmt.Fprint(w, `{"esearchresult":{"count":"2","idlist":["31452104","30000001"]}}`)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		summaryParams = r.URL.Query()
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, esummaryFixture)
	})
	withPubMedServer(t, mux)

	records, err := newTestPubMed("k3y", "me@example.org").FetchPapers(context.Background(), "cell imaging", 7)
	require.NoError(t, err)
	require.Len(t, records, 1, "entry with empty title is dropped")

	assert.Equal(t, "cell imaging", first(searchParams["term"]))
	assert.Equal(t, "7", first(searchParams["retmax"]))
	assert.Equal(t, "json", first(searchParams["retmode"]))
	assert.Equal(t, "pubmed", first(searchParams["db"]))
	assert.Equal(t, "paper-aggregator", first(searchParams["tool"]))
	assert.Equal(t, "me@example.org", first(searchParams["email"]))
	assert.Equal(t, "k3y", first(searchParams["api_key"]))
	assert.Equal(t, "31452104,30000001", first(summaryParams["id"]))
	assert.Equal(t, "xml", first(summaryParams["retmode"]))

	r := records[0]
	assert.Equal(t, "Deep learning for cellular image analysis.", r.Title())
	assert.Equal(t, []string{"Smith J", "Doe A"}, r.Authors())
	assert.Equal(t, "2019 Aug 26", r.PublishedDate())
	assert.Equal(t, 2019, r.Year())
	assert.Equal(t, "Nat Methods", r.Journal())
	assert.Equal(t, "16", r.Volume())
	assert.Equal(t, "12", r.Issue())
	assert.Equal(t, "1233-1246", r.Pages())
	assert.Equal(t, "10.1038/s41592-019-0403-1", r.DOI())
	assert.Equal(t, "31452104", r.PubMedID())
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/31452104/", r.URL())
	assert.Equal(t, "pubmed", r.Source())
}

func TestPubMedNoResultsSkipsSummary(t *testing.T) {
	var summaryCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		summaryCalls.Add(1)
	})
	withPubMedServer(t, mux)

	records, err := newTestPubMed("", "").FetchPapers(context.Background(), "nothing matches", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, summaryCalls.Load())
}

func TestPubMedOmitsOptionalParams(t *testing.T) {
	var params map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		params = r.URL.Query()
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	withPubMedServer(t, mux)

	_, err := newTestPubMed("", "").FetchPapers(context.Background(), "x", 0)
	require.NoError(t, err)
	assert.NotContains(t, params, "api_key")
	assert.NotContains(t, params, "email")
	assert.Equal(t, "1", first(params["retmax"]), "limit coerced to at least 1")
}

func TestPubMedSearchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	withPubMedServer(t, mux)

	_, err := newTestPubMed("", "").FetchPapers(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubmed returned HTTP 400")
}

func TestPubMedMalformedSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":["1"]}}`)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<eSummaryResult><DocSum>`)
	})
	withPubMedServer(t, mux)

	_, err := newTestPubMed("", "").FetchPapers(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "esummary")
}

func TestPubMedDOIFromItem(t *testing.T) {
	d := docSum{
		ID: "42",
		Items: []docItem{
			{Name: "Title", Value: "A title"},
			{Name: "DOI", Value: " 10.1/direct "},
			{Name: "ArticleIds", Items: []docItem{{Name: "doi", Value: "10.1/fallback"}}},
		},
	}
	f := d.fields()
	assert.Equal(t, "10.1/direct", f.DOI)
	assert.Equal(t, "42", f.PubMedID)
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
