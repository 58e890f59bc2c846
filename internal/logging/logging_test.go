// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		debugOn bool
		warnOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"WARN", false, true},
		{"error", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(tt.level, FormatConsole)
			require.NoError(t, err)
			core := log.Core()
			assert.Equal(t, tt.debugOn, core.Enabled(zap.DebugLevel))
			assert.Equal(t, tt.warnOn, core.Enabled(zap.WarnLevel))
			assert.True(t, core.Enabled(zap.ErrorLevel))
		})
	}
}

func TestNewFormats(t *testing.T) {
	for _, f := range []string{"", "console", "JSON"} {
		log, err := New("info", f)
		require.NoError(t, err, "format %q", f)
		require.NotNil(t, log)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", FormatConsole)
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
