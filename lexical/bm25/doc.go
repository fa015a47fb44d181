// Package bm25 provides an in-memory BM25 lexical index used to score
// candidate chunks against free query text for hybrid search.
//
// BM25 (Best Matching 25) is a ranking function for keyword search. This
// implementation builds a fresh inverted index per query over the candidate
// set already selected by semantic search, rather than indexing an entire
// layer up front — candidate sets at query time are small (bounded by the
// layers' chunk counts), and a per-query index avoids having to keep a
// lexical index in sync with every append/tombstone.
//
// Uses standard BM25 parameters: k1=1.2, b=0.75.
package bm25
