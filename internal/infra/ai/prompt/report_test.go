package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPromptSchemaIsJSON(t *testing.T) {
	p := SystemPrompt()
	start := strings.Index(p, "Schema (example with empty values):\n")
	require.GreaterOrEqual(t, start, 0)

	schema := p[start+len("Schema (example with empty values):\n"):]
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(schema), &v))
	assert.Equal(t, ReportType, v["report_type"])
}

func TestUserPrompt(t *testing.T) {
	got := UserPrompt(`{"age":"40"}`)
	assert.Contains(t, got, ReportType)
	assert.True(t, strings.HasSuffix(got, `{"age":"40"}`))
}
