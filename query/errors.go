package query

import "errors"

// ErrNoQueryVector is returned when a Request supplies neither a precomputed
// Vector nor Text plus an Embedder to compute one.
var ErrNoQueryVector = errors.New("query: no query vector or (text, embedder) supplied")

// ErrEmptyLayerSet is returned when Search is called with no open layers.
var ErrEmptyLayerSet = errors.New("query: no layers supplied")
