package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParams_DeterministicAndEscaped(t *testing.T) {
	got, err := serializeParams(map[string]any{
		"topK":     int(5),
		"tenantId": "acme",
		"query":    `it's a \path`,
	})
	require.NoError(t, err)
	// Keys sorted: query, tenantId, topK.
	assert.Equal(t, `CYPHER query='it\'s a \\path' tenantId='acme' topK=5`, got)
}

func TestSerializeValue_Vectors(t *testing.T) {
	got, err := serializeValue([]float32{0.5, 1, 2.25})
	require.NoError(t, err)
	assert.Equal(t, "[0.5,1,2.25]", got)

	got, err = serializeValue([]string{"a", "b'c"})
	require.NoError(t, err)
	assert.Equal(t, `['a','b\'c']`, got)

	_, err = serializeValue(struct{}{})
	assert.Error(t, err)
}

func TestParseFalkorReply_ReadingQuery(t *testing.T) {
	raw := []any{
		[]any{"qualifiedName", "score"},
		[]any{
			[]any{"pkg.auth::login:10", "0.92"},
			[]any{"pkg.auth::logout:30", int64(1)},
		},
		[]any{"Cached execution: 1"},
	}
	rows, err := parseFalkorReply(raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "pkg.auth::login:10", rows[0].Str("qualifiedName"))
	// Non-compact replies carry doubles as strings; Float coerces them.
	assert.InDelta(t, 0.92, rows[0].Float("score"), 1e-9)
	assert.InDelta(t, 1.0, rows[1].Float("score"), 1e-9)
}

func TestParseFalkorReply_WriteOnlyStatement(t *testing.T) {
	rows, err := parseFalkorReply([]any{[]any{"Nodes created: 1"}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseFalkorReply_MalformedReply(t *testing.T) {
	_, err := parseFalkorReply("nope")
	assert.Error(t, err)

	_, err = parseFalkorReply([]any{"header?", []any{}, []any{}})
	assert.Error(t, err)
}

func TestRow_Coercions(t *testing.T) {
	r := Row{"n": int64(7), "s": "12", "f": "3.5", "missing": nil}
	assert.Equal(t, 7, r.Int("n"))
	assert.Equal(t, 12, r.Int("s"))
	assert.InDelta(t, 3.5, r.Float("f"), 1e-9)
	assert.Equal(t, 0, r.Int("missing"))
	assert.Equal(t, "", r.Str("n"))
}
