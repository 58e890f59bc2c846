// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// MergeCluster reduces a cluster of duplicate records to one record.
//
// The member with the highest quality score is the base; its abstract,
// links, identifiers and journal details are kept verbatim. The title is
// the longest one in the cluster. Authors, keywords and sources are
// unioned, the published date is the lexicographic maximum and citations
// the maximum seen. Ties always go to the earliest member.
//
// A single-member cluster is returned unchanged. MergeCluster panics on
// an empty cluster.
func MergeCluster(cluster []types.Record) (types.Record, error) {
	switch len(cluster) {
	case 0:
		panic("dedup: MergeCluster called with an empty cluster")
	case 1:
		return cluster[0], nil
	}

	base := cluster[0]
	bestScore := qualityScore(base)
	for _, r := range cluster[1:] {
		if s := qualityScore(r); s > bestScore {
			base, bestScore = r, s
		}
	}

	f := base.Fields()
	f.Title = longestTitle(cluster)
	f.Authors = nil
	f.Keywords = nil
	f.Citations = nil

	var date string
	var keywords []string
	sources := make(map[string]struct{})
	for _, r := range cluster {
		f.Authors = append(f.Authors, r.Authors()...)
		keywords = append(keywords, r.Keywords()...)
		if d := r.PublishedDate(); d > date {
			date = d
		}
		if c, ok := r.Citations(); ok && (f.Citations == nil || c > *f.Citations) {
			f.Citations = &c
		}
		for _, tok := range types.SourceTokens(r.Source()) {
			sources[tok] = struct{}{}
		}
	}
	f.Keywords = sortedUnion(keywords)
	if date != "" {
		f.PublishedDate = date
	}
	if len(sources) > 0 {
		toks := make([]string, 0, len(sources))
		for tok := range sources {
			toks = append(toks, tok)
		}
		sort.Strings(toks)
		f.Source = strings.Join(toks, ",")
	}
	f.CreatedAt = now()

	merged, err := types.NewRecord(f)
	if err != nil {
		return types.Record{}, fmt.Errorf("merging cluster of %d records: %w", len(cluster), err)
	}
	return merged, nil
}

// qualityScore rates how complete a record is. An abstract counts double.
func qualityScore(r types.Record) int {
	score := 0
	if r.Abstract() != "" {
		score += 2
	}
	if r.DOI() != "" {
		score++
	}
	if r.URL() != "" {
		score++
	}
	if r.PDFURL() != "" {
		score++
	}
	if _, ok := r.Citations(); ok {
		score++
	}
	return score + min(len(r.Authors()), 3)
}

func longestTitle(cluster []types.Record) string {
	title := cluster[0].Title()
	n := utf8.RuneCountInString(title)
	for _, r := range cluster[1:] {
		if m := utf8.RuneCountInString(r.Title()); m > n {
			title, n = r.Title(), m
		}
	}
	return title
}

// sortedUnion removes case-insensitive duplicates, keeping the first
// spelling, and sorts the result.
func sortedUnion(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
