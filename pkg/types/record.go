// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures of the paper aggregator:
// the canonical Record and the configuration for each stage.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyTitle is returned by NewRecord when the title is blank after trimming.
var ErrEmptyTitle = errors.New("record title cannot be empty")

// urlPattern accepts absolute http(s) URLs with a domain, localhost or IPv4 host.
var urlPattern = regexp.MustCompile(`(?i)^https?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

var yearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// now is the clock used to stamp CreatedAt. Tests override it.
var now = time.Now

// unknownAuthor is reported as the primary author of a record with no authors.
const unknownAuthor = "Unknown"

// RecordFields is the raw, unvalidated input to NewRecord. Source adapters
// fill it from provider payloads; storage fills it from rows. Empty strings
// mean "absent".
type RecordFields struct {
	Title             string    `json:"title" yaml:"title"`
	Authors           []string  `json:"authors" yaml:"authors"`
	PublishedDate     string    `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	Source            string    `json:"source,omitempty" yaml:"source,omitempty"`
	Abstract          string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL               string    `json:"url,omitempty" yaml:"url,omitempty"`
	DOI               string    `json:"doi,omitempty" yaml:"doi,omitempty"`
	Keywords          []string  `json:"keywords" yaml:"keywords"`
	Citations         *int      `json:"citations,omitempty" yaml:"citations,omitempty"`
	Journal           string    `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume            string    `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue             string    `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages             string    `json:"pages,omitempty" yaml:"pages,omitempty"`
	PDFURL            string    `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	ArxivID           string    `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	PubMedID          string    `json:"pubmed_id,omitempty" yaml:"pubmed_id,omitempty"`
	SemanticScholarID string    `json:"semantic_scholar_id,omitempty" yaml:"semantic_scholar_id,omitempty"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}

// Record is one validated unit of bibliographic metadata. It is built only
// through NewRecord and has no mutators, so a Record can be shared freely
// between goroutines.
type Record struct {
	title             string
	authors           []string
	publishedDate     string
	source            string
	abstract          string
	url               string
	doi               string
	keywords          []string
	citations         int
	hasCitations      bool
	journal           string
	volume            string
	issue             string
	pages             string
	pdfURL            string
	arxivID           string
	pubmedID          string
	semanticScholarID string
	createdAt         time.Time
}

// NewRecord normalizes f and returns the resulting Record. The only
// rejected input is a blank title; everything else is cleaned up:
// strings are trimmed, malformed URLs and negative citation counts are
// dropped, and author/keyword lists lose empty and case-duplicate entries.
func NewRecord(f RecordFields) (Record, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return Record{}, ErrEmptyTitle
	}

	r := Record{
		title:             title,
		authors:           uniqueFold(f.Authors),
		publishedDate:     strings.TrimSpace(f.PublishedDate),
		source:            CanonicalSource(f.Source),
		abstract:          strings.TrimSpace(f.Abstract),
		url:               validURL(f.URL),
		doi:               strings.TrimSpace(f.DOI),
		keywords:          uniqueFold(f.Keywords),
		journal:           strings.TrimSpace(f.Journal),
		volume:            strings.TrimSpace(f.Volume),
		issue:             strings.TrimSpace(f.Issue),
		pages:             strings.TrimSpace(f.Pages),
		pdfURL:            validURL(f.PDFURL),
		arxivID:           strings.TrimSpace(f.ArxivID),
		pubmedID:          strings.TrimSpace(f.PubMedID),
		semanticScholarID: strings.TrimSpace(f.SemanticScholarID),
		createdAt:         f.CreatedAt,
	}
	if f.Citations != nil && *f.Citations >= 0 {
		r.citations = *f.Citations
		r.hasCitations = true
	}
	if r.createdAt.IsZero() {
		r.createdAt = now()
	}
	return r, nil
}

// CanonicalSource lower-cases a provider identifier and replaces inner
// whitespace with underscores ("Semantic Scholar" -> "semantic_scholar").
// Comma-separated lists (multi-provenance markers) are canonicalized per token.
func CanonicalSource(s string) string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		tok := strings.Join(strings.Fields(strings.ToLower(p)), "_")
		if tok != "" {
			out = append(out, tok)
		}
	}
	return strings.Join(out, ",")
}

// SourceTokens splits a (possibly merged) source marker into its tokens.
func SourceTokens(s string) []string {
	var toks []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			toks = append(toks, p)
		}
	}
	return toks
}

func validURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !urlPattern.MatchString(s) {
		return ""
	}
	return s
}

// uniqueFold trims entries, drops empty ones and removes case-insensitive
// duplicates, keeping the first spelling seen.
func uniqueFold(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (r Record) Title() string             { return r.title }
func (r Record) PublishedDate() string     { return r.publishedDate }
func (r Record) Source() string            { return r.source }
func (r Record) Abstract() string          { return r.abstract }
func (r Record) URL() string               { return r.url }
func (r Record) DOI() string               { return r.doi }
func (r Record) Journal() string           { return r.journal }
func (r Record) Volume() string            { return r.volume }
func (r Record) Issue() string             { return r.issue }
func (r Record) Pages() string             { return r.pages }
func (r Record) PDFURL() string            { return r.pdfURL }
func (r Record) ArxivID() string           { return r.arxivID }
func (r Record) PubMedID() string          { return r.pubmedID }
func (r Record) SemanticScholarID() string { return r.semanticScholarID }
func (r Record) CreatedAt() time.Time      { return r.createdAt }

// Authors returns a copy of the author list.
func (r Record) Authors() []string { return append([]string(nil), r.authors...) }

// Keywords returns a copy of the keyword list.
func (r Record) Keywords() []string { return append([]string(nil), r.keywords...) }

// Citations returns the citation count and whether one is known.
func (r Record) Citations() (int, bool) { return r.citations, r.hasCitations }

// Fields returns the record as raw fields, suitable for building a
// modified copy through NewRecord.
func (r Record) Fields() RecordFields {
	f := RecordFields{
		Title:             r.title,
		Authors:           r.Authors(),
		PublishedDate:     r.publishedDate,
		Source:            r.source,
		Abstract:          r.abstract,
		URL:               r.url,
		DOI:               r.doi,
		Keywords:          r.Keywords(),
		Journal:           r.journal,
		Volume:            r.volume,
		Issue:             r.issue,
		Pages:             r.pages,
		PDFURL:            r.pdfURL,
		ArxivID:           r.arxivID,
		PubMedID:          r.pubmedID,
		SemanticScholarID: r.semanticScholarID,
		CreatedAt:         r.createdAt,
	}
	if r.hasCitations {
		c := r.citations
		f.Citations = &c
	}
	return f
}

// Year extracts a 19xx/20xx year from the published date, or 0 when none
// is present.
func (r Record) Year() int {
	m := yearPattern.FindString(r.publishedDate)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

// PrimaryAuthor returns the first author, or "Unknown".
func (r Record) PrimaryAuthor() string {
	if len(r.authors) == 0 {
		return unknownAuthor
	}
	return r.authors[0]
}

// AuthorList joins up to max authors, appending "et al." when truncated.
func (r Record) AuthorList(max int) string {
	if len(r.authors) == 0 {
		return unknownAuthor
	}
	if max <= 0 || len(r.authors) <= max {
		return strings.Join(r.authors, ", ")
	}
	return strings.Join(r.authors[:max], ", ") + ", et al."
}

// FormattedCitation renders a short APA-like citation line.
func (r Record) FormattedCitation() string {
	year := "Unknown"
	if y := r.Year(); y > 0 {
		year = strconv.Itoa(y)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s). %s.", r.AuthorList(3), year, r.title)
	if r.journal != "" {
		b.WriteString(" " + r.journal)
		if r.volume != "" {
			b.WriteString(", " + r.volume)
			if r.issue != "" {
				b.WriteString("(" + r.issue + ")")
			}
		}
		if r.pages != "" {
			b.WriteString(", " + r.pages)
		}
	}
	if r.doi != "" {
		b.WriteString(" DOI: " + r.doi)
	}
	return b.String()
}

// HasPDF reports whether a PDF link is known.
func (r Record) HasPDF() bool { return r.pdfURL != "" }

// IsRecent reports whether the record was published within the given
// number of years before at. Records without a year are never recent.
func (r Record) IsRecent(years int, at time.Time) bool {
	y := r.Year()
	if y == 0 {
		return false
	}
	return at.Year()-y <= years
}

// Equal reports whether two records have the same identity: titles and
// primary authors match case-insensitively. This is exact matching, not
// the fuzzy similarity used for deduplication.
func (r Record) Equal(o Record) bool {
	return strings.EqualFold(r.title, o.title) &&
		strings.EqualFold(r.PrimaryAuthor(), o.PrimaryAuthor())
}

// MarshalJSON encodes the record through RecordFields.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// UnmarshalJSON decodes RecordFields and validates them through NewRecord.
func (r *Record) UnmarshalJSON(data []byte) error {
	var f RecordFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	rec, err := NewRecord(f)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// MarshalYAML encodes the record through RecordFields.
func (r Record) MarshalYAML() (any, error) {
	return r.Fields(), nil
}

// UnmarshalYAML decodes RecordFields and validates them through NewRecord.
func (r *Record) UnmarshalYAML(unmarshal func(any) error) error {
	var f RecordFields
	if err := unmarshal(&f); err != nil {
		return err
	}
	rec, err := NewRecord(f)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// String returns a one-line summary for logs and debugging.
func (r Record) String() string {
	year := "Unknown"
	if y := r.Year(); y > 0 {
		year = strconv.Itoa(y)
	}
	return fmt.Sprintf("%s - %s (%s)", r.title, r.AuthorList(3), year)
}
