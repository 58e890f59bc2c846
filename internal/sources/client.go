// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the provider adapters (arXiv, Semantic
// Scholar, PubMed) that turn one provider's API into types.Record values.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/internal/httputil"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// maxBody bounds how much of a provider response is read.
const maxBody = 32 << 20

// client bundles what every adapter needs to talk to its API: a shared
// HTTP client, a per-provider rate limiter and retry settings.
type client struct {
	name       string
	http       *http.Client
	userAgent  string
	maxRetries int
	limiter    *rate.Limiter
	log        *zap.Logger
}

func newClient(name string, hc *http.Client, cfg types.HTTPConfig, limit rate.Limit, log *zap.Logger) client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	return client{
		name:       name,
		http:       hc,
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.With(zap.String("source", name)),
	}
}

// get waits for the rate limiter, performs a GET with retries and returns
// the body of a 200 response.
func (c *client) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("requesting", zap.String("url", rawURL))
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries, c.log)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", c.name, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", c.name, err)
	}
	return body, nil
}

// build validates f into a Record, logging and dropping entries whose
// title is unusable.
func (c *client) build(f types.RecordFields) (types.Record, bool) {
	f.Source = c.name
	r, err := types.NewRecord(f)
	if err != nil {
		c.log.Debug("dropping entry", zap.Error(err))
		return types.Record{}, false
	}
	return r, true
}

// cleanText strips HTML markup, decodes entities, removes control
// characters and collapses whitespace.
func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func cleanAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, cleanText(s))
	}
	return out
}
