package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextKeepsShortInputWhole(t *testing.T) {
	chunks := chunkText("first paragraph\n\nsecond paragraph", 100)

	require.Len(t, chunks, 1)
	assert.Equal(t, "first paragraph\nsecond paragraph", chunks[0])
}

func TestChunkTextSplitsOnParagraphBoundaries(t *testing.T) {
	a := strings.Repeat("a", 60)
	b := strings.Repeat("b", 60)
	c := strings.Repeat("c", 60)

	chunks := chunkText(a+"\n"+b+"\n"+c, 130)

	require.Len(t, chunks, 2)
	assert.Equal(t, a+"\n"+b, chunks[0])
	assert.Equal(t, c, chunks[1])
}

func TestChunkTextHardSlicesOversizedParagraph(t *testing.T) {
	long := strings.Repeat("x", 250)

	chunks := chunkText(long, 100)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Equal(t, []string{""}, chunkText("   \n\n  ", 100))
}
