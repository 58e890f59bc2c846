// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/internal/aggregate"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// Adapter ids.
const (
	ArxivName           = "arxiv"
	PubMedName          = "pubmed"
	SemanticScholarName = "semantic_scholar"
)

// Names lists every adapter id in sorted order.
func Names() []string {
	return []string{ArxivName, PubMedName, SemanticScholarName}
}

// IDLookup is implemented by adapters that can fetch a single paper by a
// provider id.
type IDLookup interface {
	Name() string
	FetchByID(ctx context.Context, id string) (types.Record, error)
}

const defaultHTTPTimeout = 30 * time.Second

// Registry builds the adapters named in cfg.Enabled, or all of them when
// it is empty. A nil hc gets a client with cfg.Timeout.
func Registry(cfg types.SourcesConfig, hc *http.Client, log *zap.Logger) ([]aggregate.Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	enabled := cfg.Enabled
	if len(enabled) == 0 {
		enabled = Names()
	}

	var out []aggregate.Source
	var unknown []string
	seen := make(map[string]bool)
	for _, raw := range enabled {
		name := types.CanonicalSource(raw)
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case ArxivName:
			out = append(out, NewArxiv(hc, cfg.HTTPConfig, log))
		case SemanticScholarName:
			out = append(out, NewSemanticScholar(hc, cfg.HTTPConfig, cfg.SemanticScholarAPIKey, log))
		case PubMedName:
			out = append(out, NewPubMed(hc, cfg.HTTPConfig, cfg.PubMedAPIKey, cfg.PubMedEmail, log))
		default:
			unknown = append(unknown, raw)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown source(s) %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return out, nil
}
