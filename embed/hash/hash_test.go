package hash_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/embed"
	"github.com/agentsdb/agentsdb/embed/hash"
)

func TestEmbedIsDeterministic(t *testing.T) {
	e := hash.New(16)
	a, err := e.Embed(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEmbedIsNormalized(t *testing.T) {
	e := hash.New(32)
	out, err := e.Embed(context.Background(), []string{"x y z"})
	require.NoError(t, err)

	var sum float64
	for _, x := range out[0] {
		sum += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbedDiffersByText(t *testing.T) {
	e := hash.New(16)
	out, err := e.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.NotEqual(t, out[0], out[1])
}

func TestRegisteredUnderHashName(t *testing.T) {
	e, err := embed.Open("hash", embed.Config{Dim: 8})
	require.NoError(t, err)
	require.Equal(t, "hash", e.Profile().Backend)
	require.Equal(t, 8, e.Profile().Dim)
}
