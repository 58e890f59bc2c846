// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// CSLItem is a bibliographic entry in CSL-YAML, the format Pandoc and
// most reference managers read.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Issue          string    `yaml:"issue,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Keyword        string    `yaml:"keyword,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate holds date-parts: [[year, month, day]] with trailing parts
// omitted when unknown.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// CSL writes records as a CSL-YAML list.
func CSL(w io.Writer, records []types.Record) error {
	items := make([]CSLItem, len(records))
	for i, r := range records {
		items[i] = toCSLItem(r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(r types.Record) CSLItem {
	item := CSLItem{
		ID:             cslID(r),
		Type:           "article",
		Title:          r.Title(),
		Abstract:       r.Abstract(),
		Issued:         cslDate(r.PublishedDate()),
		ContainerTitle: r.Journal(),
		Volume:         r.Volume(),
		Issue:          r.Issue(),
		Page:           r.Pages(),
		DOI:            r.DOI(),
		URL:            r.URL(),
		Keyword:        strings.Join(r.Keywords(), ", "),
	}
	if r.Journal() != "" {
		item.Type = "article-journal"
	}
	for _, a := range r.Authors() {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	return item
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// cslID prefers a stable external identifier and falls back to a slug of
// the first author, year and title.
func cslID(r types.Record) string {
	switch {
	case r.DOI() != "":
		return r.DOI()
	case r.ArxivID() != "":
		return "arXiv:" + r.ArxivID()
	case r.PubMedID() != "":
		return "PMID:" + r.PubMedID()
	}
	parts := []string{r.PrimaryAuthor()}
	if y := r.Year(); y > 0 {
		parts = append(parts, strconv.Itoa(y))
	}
	words := strings.Fields(r.Title())
	parts = append(parts, words[:min(3, len(words))]...)
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.Join(parts, " ")), "-"), "-")
}

// Date layouts seen in provider payloads, most specific first.
var dateLayouts = []struct {
	layout string
	parts  int
}{
	{time.RFC3339, 3},
	{"2006-01-02", 3},
	{"2006 Jan 2", 3},
	{"2006-01", 2},
	{"2006 Jan", 2},
}

func cslDate(s string) *CSLDate {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, d := range dateLayouts {
		t, err := time.Parse(d.layout, s)
		if err != nil {
			continue
		}
		parts := []int{t.Year(), int(t.Month()), t.Day()}
		return &CSLDate{DateParts: [][]int{parts[:d.parts]}}
	}
	if m := yearOnly.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return &CSLDate{DateParts: [][]int{{y}}}
	}
	return nil
}

var yearOnly = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// parseAuthorName splits on the last space: the last token is the family
// name. PubMed's "Smith J" form is recognized by its initials-only tail.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	head, tail := name[:idx], name[idx+1:]
	if isInitials(tail) && !strings.Contains(head, " ") {
		return CSLName{Family: head, Given: tail}
	}
	return CSLName{Given: head, Family: tail}
}

func isInitials(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
