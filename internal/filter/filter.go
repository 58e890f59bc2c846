// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter narrows aggregated records after a run.
package filter

import (
	"strings"
	"time"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// ByAuthor keeps records with an author containing name, ignoring case.
// A blank name keeps everything.
func ByAuthor(records []types.Record, name string) []types.Record {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return append([]types.Record(nil), records...)
	}
	var out []types.Record
	for _, r := range records {
		for _, a := range r.Authors() {
			if strings.Contains(strings.ToLower(a), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// ByYear keeps records whose publication year equals year.
func ByYear(records []types.Record, year int) []types.Record {
	var out []types.Record
	for _, r := range records {
		if r.Year() == year {
			out = append(out, r)
		}
	}
	return out
}

// BySource keeps records whose source list contains source.
func BySource(records []types.Record, source string) []types.Record {
	source = types.CanonicalSource(source)
	var out []types.Record
	for _, r := range records {
		for _, tok := range types.SourceTokens(r.Source()) {
			if tok == source {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// WithPDF keeps records that link to a PDF.
func WithPDF(records []types.Record) []types.Record {
	var out []types.Record
	for _, r := range records {
		if r.HasPDF() {
			out = append(out, r)
		}
	}
	return out
}

// Recent keeps records published within the last years years of at.
func Recent(records []types.Record, years int, at time.Time) []types.Record {
	var out []types.Record
	for _, r := range records {
		if r.IsRecent(years, at) {
			out = append(out, r)
		}
	}
	return out
}
