package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_Object(t *testing.T) {
	got, ok := extractJSON(`The result is {"a": 1, "b": {"c": [1, 2]}} as requested.`)
	require.True(t, ok)
	assert.Equal(t, `{"a": 1, "b": {"c": [1, 2]}}`, got)
}

func TestExtractJSON_Array(t *testing.T) {
	got, ok := extractJSON(`Here you go: [{"x": "y"}, {"x": "z"}]`)
	require.True(t, ok)
	assert.Equal(t, `[{"x": "y"}, {"x": "z"}]`, got)
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	got, ok := extractJSON(`{"quote": "he said {wait} and \"stop\""} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"quote": "he said {wait} and \"stop\""}`, got)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	got, ok := extractJSON("```json\n{\"a\": 1}\n```")
	require.True(t, ok)
	assert.Equal(t, `{"a": 1}`, got)
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, ok := extractJSON("no structured content here")
	assert.False(t, ok)
}

func TestExtractJSON_Unbalanced(t *testing.T) {
	_, ok := extractJSON(`{"a": [1, 2`)
	assert.False(t, ok)
}

func TestDecodeModelJSON_FallbackPath(t *testing.T) {
	var out map[string]int
	err := decodeModelJSON(`Sure! {"answer": 42} Hope that helps.`, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out["answer"])
}

func TestDecodeModelJSON_NoJSON(t *testing.T) {
	var out map[string]int
	err := decodeModelJSON("nothing structured", &out)
	assert.ErrorIs(t, err, errNoJSON)
}
