// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render writes aggregated records as a terminal table, JSON, CSV
// or CSL-YAML, and saves whole searches as query files.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// Output formats accepted by Write.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatCSL      = "csl"
	FormatCitation = "citation"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatCSV, FormatCSL, FormatCitation}
}

// Write renders records in the named format. dupsRemoved is only shown
// by the table format.
func Write(w io.Writer, format string, records []types.Record, dupsRemoved int) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		Table(w, records, dupsRemoved)
		return nil
	case FormatJSON:
		return JSON(w, records)
	case FormatCSV:
		return CSV(w, records)
	case FormatCSL:
		return CSL(w, records)
	case FormatCitation:
		return Citations(w, records)
	default:
		return fmt.Errorf("unknown format %q (available: %s)", format, strings.Join(Formats(), ", "))
	}
}

// Citations writes one numbered reference line per record.
func Citations(w io.Writer, records []types.Record) error {
	for i, r := range records {
		if _, err := fmt.Fprintf(w, "[%d] %s\n", i+1, r.FormattedCitation()); err != nil {
			return err
		}
	}
	return nil
}

// Table writes a fixed-width listing followed by per-source counts.
func Table(w io.Writer, records []types.Record, dupsRemoved int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %s\n",
		"#", "Title", "Authors", "Year", "Cites", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 112))

	for i, r := range records {
		year := ""
		if y := r.Year(); y > 0 {
			year = strconv.Itoa(y)
		}
		cites := ""
		if n, ok := r.Citations(); ok {
			cites = strconv.Itoa(n)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6s  %s\n",
			i+1, truncate(r.Title(), 60), formatAuthors(r.Authors()), year, cites, r.Source())
	}

	fmt.Fprintf(w, "\n%d papers", len(records))
	if dupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", dupsRemoved)
	}
	fmt.Fprintln(w)

	counts := SourceCounts(records)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %d\n", name, counts[name])
	}
}

// SourceCounts tallies records by their source marker. Merged records
// count under their combined marker.
func SourceCounts(records []types.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		src := r.Source()
		if src == "" {
			src = "unknown"
		}
		counts[src]++
	}
	return counts
}

// JSON writes records as an indented JSON array.
func JSON(w io.Writer, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

var csvHeader = []string{"Title", "Authors", "Published Date", "Source", "Journal", "DOI", "URL", "Citations"}

// CSV writes one row per record with authors joined by "; ".
func CSV(w io.Writer, records []types.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		cites := ""
		if n, ok := r.Citations(); ok {
			cites = strconv.Itoa(n)
		}
		row := []string{
			r.Title(),
			strings.Join(r.Authors(), "; "),
			r.PublishedDate(),
			r.Source(),
			r.Journal(),
			r.DOI(),
			r.URL(),
			cites,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

