package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"status": "open",
		"id":     "al-1",
		"amount": int64(1200),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":1200,"id":"al-1","status":"open"}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"description": "amount < 100 & flagged"})
	require.NoError(t, err)
	assert.Equal(t, `{"description":"amount < 100 & flagged"}`, string(b))
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"amount": 12.5})
	assert.Error(t, err)
}

func TestMarshalCanonical_RejectsNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"order_id": nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_Array(t *testing.T) {
	b, err := MarshalCanonical([]any{"a", int64(2), true})
	require.NoError(t, err)
	assert.Equal(t, `["a",2,true]`, string(b))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" + COMBINING ACUTE ACCENT normalizes to the precomposed form.
	decomposed := "café"
	precomposed := "café"

	b1, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b2, err := MarshalCanonical(precomposed)
	require.NoError(t, err)

	assert.Equal(t, b2, b1)
}

func TestMarshalCanonical_LineSeparatorsStayLiteral(t *testing.T) {
	b, err := MarshalCanonical("a b c")
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(b))
}

func TestMarshalCanonical_EscapedBackslashBeforeU2028Text(t *testing.T) {
	// A literal backslash followed by the text "u2028" must stay escaped.
	b, err := MarshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(b))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	m := map[string]any{"z": "1", "a": "2", "m": []any{map[string]any{"k": int64(1)}}}
	b1, err := MarshalCanonical(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b2, err := MarshalCanonical(m)
		require.NoError(t, err)
		assert.Equal(t, b1, b2)
	}
}

func TestCompareKeysUTF16_SurrogateOrdering(t *testing.T) {
	// U+FF61 (halfwidth ideographic full stop) is a single UTF-16 unit
	// 0xFF61; U+1D306 encodes as surrogate pair starting 0xD834. Under
	// UTF-16 ordering the surrogate pair sorts FIRST, unlike UTF-8.
	assert.Equal(t, 1, compareKeysUTF16("｡", "\U0001D306"))
	assert.Equal(t, -1, compareKeysUTF16("\U0001D306", "｡"))
	assert.Equal(t, 0, compareKeysUTF16("abc", "abc"))
	assert.Equal(t, -1, compareKeysUTF16("ab", "abc"))
}
