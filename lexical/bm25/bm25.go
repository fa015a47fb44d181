package bm25

import (
	"math"
	"strings"
	"sync"

	"github.com/agentsdb/agentsdb/format"
)

const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	id    format.ChunkID
	count int
}

// MemoryIndex is a simple in-memory BM25 index over chunk content, built
// fresh per query over a candidate set.
type MemoryIndex struct {
	mu          sync.RWMutex
	inverted    map[string][]posting
	docLengths  map[format.ChunkID]int
	totalLength int64
	docCount    int
}

// New creates an empty MemoryIndex.
func New() *MemoryIndex {
	return &MemoryIndex{
		inverted:   make(map[string][]posting),
		docLengths: make(map[format.ChunkID]int),
	}
}

func (idx *MemoryIndex) tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Add indexes a chunk's content under id, replacing any prior content for
// the same id.
func (idx *MemoryIndex) Add(id format.ChunkID, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.docLengths[id]; ok {
		idx.deleteLocked(id)
	}

	tokens := idx.tokenize(content)
	length := len(tokens)

	idx.docLengths[id] = length
	idx.totalLength += int64(length)
	idx.docCount++

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t, count := range tf {
		idx.inverted[t] = append(idx.inverted[t], posting{id: id, count: count})
	}
}

// Delete removes id from the index.
func (idx *MemoryIndex) Delete(id format.ChunkID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deleteLocked(id)
}

func (idx *MemoryIndex) deleteLocked(id format.ChunkID) {
	length, ok := idx.docLengths[id]
	if !ok {
		return
	}
	for t, postings := range idx.inverted {
		for i, p := range postings {
			if p.id == id {
				idx.inverted[t] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
	}
	delete(idx.docLengths, id)
	idx.totalLength -= int64(length)
	idx.docCount--
}

// Score returns the BM25 score of every indexed chunk against text. Chunks
// with no term overlap are absent from the result rather than scored zero.
func (idx *MemoryIndex) Score(text string) map[format.ChunkID]float32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make(map[format.ChunkID]float32)
	if idx.docCount == 0 {
		return scores
	}

	tokens := idx.tokenize(text)
	avgDL := float64(idx.totalLength) / float64(idx.docCount)

	for _, t := range tokens {
		postings, ok := idx.inverted[t]
		if !ok {
			continue
		}
		idf := idx.computeIDF(len(postings))
		for _, p := range postings {
			tf := float64(p.count)
			docLen := float64(idx.docLengths[p.id])
			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/avgDL))
			scores[p.id] += float32(idf * (num / denom))
		}
	}
	return scores
}

// computeIDF returns log(1 + (N - n + 0.5) / (n + 0.5)).
func (idx *MemoryIndex) computeIDF(df int) float64 {
	N := float64(idx.docCount)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}
