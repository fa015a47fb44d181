package bm25

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/format"
)

func TestMemoryIndexScoresOverlappingTerms(t *testing.T) {
	idx := New()
	idx.Add(1, "the quick brown fox")
	idx.Add(2, "jumped over the lazy dog")
	idx.Add(3, "quick brown dogs")
	idx.Add(4, "fox and dog")

	scores := idx.Score("fox")
	require.Contains(t, scores, format.ChunkID(1))
	require.Contains(t, scores, format.ChunkID(4))
	require.NotContains(t, scores, format.ChunkID(2))
}

func TestMemoryIndexDeleteRemovesPostings(t *testing.T) {
	idx := New()
	idx.Add(1, "test content")
	idx.Add(2, "other content")
	require.Len(t, idx.Score("test"), 1)

	idx.Delete(1)
	require.Len(t, idx.Score("test"), 0)

	idx.Add(1, "test content again")
	require.Len(t, idx.Score("test"), 1)
}

func TestMemoryIndexHighTermFrequency(t *testing.T) {
	idx := New()
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("word ")
	}
	idx.Add(1, b.String())

	scores := idx.Score("word")
	require.Len(t, scores, 1)
	require.Greater(t, scores[format.ChunkID(1)], float32(0))
}
