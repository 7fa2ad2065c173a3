package llm

import (
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: `["a","b"]`, want: `["a","b"]`},
		{name: "json fence", raw: "```json\n[\"a\"]\n```", want: `["a"]`},
		{name: "bare fence", raw: "```\n[\"a\"]\n```\n", want: `["a"]`},
		{name: "leading prose", raw: "Here are the pages:\n[\"p1\", \"p2\"]\nDone.", want: `["p1", "p2"]`},
		{name: "single line fence", raw: "```", want: "```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.raw))
		})
	}
}

func TestParsePages(t *testing.T) {
	pages, err := ParsePages("```json\n[\"First page.\\n\\nSecond paragraph.\", \"\", \"Third\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"First page.\n\nSecond paragraph.", "", "Third"}, pages)

	_, err = ParsePages(`{"pages": 3}`)
	assert.Error(t, err)
}

func TestExternalKind(t *testing.T) {
	err := external("Embedding request failed", assert.AnError)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	assert.Equal(t, "Embedding request failed", apperr.Message(err))
	assert.ErrorIs(t, err, assert.AnError)
}
