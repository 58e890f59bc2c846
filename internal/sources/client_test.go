// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-aggregator/internal/aggregate"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

var (
	_ aggregate.Source = (*Arxiv)(nil)
	_ aggregate.Source = (*SemanticScholar)(nil)
	_ aggregate.Source = (*PubMed)(nil)

	_ aggregate.YearSource = (*SemanticScholar)(nil)

	_ IDLookup = (*Arxiv)(nil)
	_ IDLookup = (*SemanticScholar)(nil)
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Graph Neural Networks", "Graph Neural Networks"},
		{"whitespace", "  Graph\n\tNeural   Networks ", "Graph Neural Networks"},
		{"tags", "<p>Deep <b>learning</b></p>", "Deep learning"},
		{"entities", "Q&amp;A over &lt;tables&gt;", "Q&A over <tables>"},
		{"control chars", "bell\u0007 here", "bell here"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestCleanAll(t *testing.T) {
	assert.Equal(t, []string{"a b", "c"}, cleanAll([]string{" a  b", "<i>c</i>"}))
	assert.Empty(t, cleanAll(nil))
}

func TestClientGetSendsHeaders(t *testing.T) {
	var ua, extra string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		extra = r.Header.Get("X-Extra")
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := newClient("test", ts.Client(), types.HTTPConfig{}, rate.Inf, nil)
	body, err := c.get(context.Background(), ts.URL, http.Header{"X-Extra": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, types.DefaultUserAgent, ua)
	assert.Equal(t, "1", extra)
}

func TestClientGetRespectsLimiterContext(t *testing.T) {
	c := newClient("slow", nil, types.HTTPConfig{}, rate.Every(time.Hour), nil)
	// Drain the single burst token so the next Wait must block.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.get(ctx, "http://127.0.0.1:1/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestClientBuildDropsBlankTitles(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newClient("arxiv", nil, types.HTTPConfig{}, rate.Inf, zap.New(core))

	_, ok := c.build(types.RecordFields{Title: "  "})
	assert.False(t, ok)
	require.Equal(t, 1, logs.FilterMessage("dropping entry").Len())
	assert.Equal(t, "arxiv", logs.All()[0].ContextMap()["source"])

	r, ok := c.build(types.RecordFields{Title: "Kept", Source: "ignored"})
	require.True(t, ok)
	assert.Equal(t, "arxiv", r.Source())
}
