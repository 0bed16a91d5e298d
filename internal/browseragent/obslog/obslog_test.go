package obslog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersByCategory(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, CategoryNavigator)

	l.Info(CategoryPlanner, "should be dropped", nil)
	l.Info(CategoryNavigator, "should appear", map[string]any{"step": 1})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "should appear", e.Message)
	assert.Equal(t, string(CategoryNavigator), e.Category)
}

func TestDebugGatedByFlag(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Debug(CategoryPipeline, "hidden", nil)
	assert.Empty(t, buf.String())

	l.SetDebug(true)
	l.Debug(CategoryPipeline, "visible", nil)
	assert.Contains(t, buf.String(), "visible")
}
