package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsIDsInOrder(t *testing.T) {
	g := NewFixedIDGenerator("a", "b", "c")

	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "c", g.Generate())
}

func TestFixedIDGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedIDGenerator("only")
	g.Generate()

	assert.Panics(t, func() { g.Generate() })
}

func TestSeqIDGenerator(t *testing.T) {
	g := NewSeqIDGenerator("txn")

	assert.Equal(t, "txn-1", g.Generate())
	assert.Equal(t, "txn-2", g.Generate())
}
