package format_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/format"
)

func buildChunk(id format.ChunkID, content string, dim int) format.NewChunk {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(i) / float32(dim)
	}
	return format.NewChunk{
		ID:          id,
		Kind:        format.KindNote,
		Content:     content,
		Author:      format.AuthorHuman,
		Confidence:  0.9,
		CreatedAtMs: 1000,
		Embedding:   vec,
	}
}

func TestRoundTrip(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	res, err := w.Build(nil, []format.NewChunk{
		buildChunk(0, "first chunk", 8),
		buildChunk(0, "second chunk", 8),
	})
	require.NoError(t, err)
	require.Equal(t, []format.ChunkID{1, 2}, res.AssignedIDs)

	f, err := format.Decode(res.Bytes)
	require.NoError(t, err)
	require.Equal(t, 2, f.Chunks.Len())

	r0, _ := f.Chunks.At(0)
	content, err := f.Dict.Lookup(r0.ContentStrID)
	require.NoError(t, err)
	require.Equal(t, "first chunk", content)

	r1, _ := f.Chunks.At(1)
	content1, err := f.Dict.Lookup(r1.ContentStrID)
	require.NoError(t, err)
	require.Equal(t, "second chunk", content1)
}

func TestAppendOnlyPreservesPriorIDsAndOffsets(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	res1, err := w.Build(nil, []format.NewChunk{buildChunk(0, "a", 4)})
	require.NoError(t, err)

	f1, err := format.Decode(res1.Bytes)
	require.NoError(t, err)
	r1, _ := f1.Chunks.At(0)

	res2, err := w.Build(f1, []format.NewChunk{buildChunk(0, "b", 4)})
	require.NoError(t, err)
	require.Equal(t, []format.ChunkID{2}, res2.AssignedIDs)

	f2, err := format.Decode(res2.Bytes)
	require.NoError(t, err)
	require.Equal(t, 2, f2.Chunks.Len())

	r1Again, _ := f2.Chunks.At(0)
	require.Equal(t, r1.ID, r1Again.ID)
	require.Equal(t, r1.ContentStrID, r1Again.ContentStrID)
	require.Equal(t, r1.EmbeddingRow, r1Again.EmbeddingRow)
}

func TestIDUniquenessLatestWins(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	res1, err := w.Build(nil, []format.NewChunk{buildChunk(0, "v1", 4)})
	require.NoError(t, err)
	f1, err := format.Decode(res1.Bytes)
	require.NoError(t, err)

	res2, err := w.Build(f1, []format.NewChunk{buildChunk(1, "v2", 4)})
	require.NoError(t, err)
	f2, err := format.Decode(res2.Bytes)
	require.NoError(t, err)

	require.Equal(t, 2, f2.Chunks.Len())
	latest, idx, ok := f2.Chunks.Latest(1)
	require.True(t, ok)
	require.Equal(t, 1, idx)
	content, err := f2.Dict.Lookup(latest.ContentStrID)
	require.NoError(t, err)
	require.Equal(t, "v2", content)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := make([]byte, format.HeaderSize)
	_, err := format.Decode(buf)
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindBadMagic))
}

func TestDecodeRejectsTruncatedFile(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	res, err := w.Build(nil, []format.NewChunk{buildChunk(0, "a", 4)})
	require.NoError(t, err)

	_, err = format.Decode(res.Bytes[:len(res.Bytes)-4])
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindTruncatedFile))
}

func TestSchemaMismatchOnDimensionChange(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	res1, err := w.Build(nil, []format.NewChunk{buildChunk(0, "a", 4)})
	require.NoError(t, err)
	f1, err := format.Decode(res1.Bytes)
	require.NoError(t, err)

	_, err = w.Build(f1, []format.NewChunk{buildChunk(0, "b", 8)})
	require.Error(t, err)
	var mismatch *format.ErrSchemaMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestRelationshipsSurviveRoundTrip(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	c := buildChunk(0, "with sources", 4)
	c.Sources = []format.Source{format.SourceRef("file.rs:42")}
	res, err := w.Build(nil, []format.NewChunk{c})
	require.NoError(t, err)

	f, err := format.Decode(res.Bytes)
	require.NoError(t, err)
	r, _ := f.Chunks.At(0)
	require.EqualValues(t, 1, r.RelCount)
	srcs, err := f.Relationships.Slice(r.RelStart, r.RelCount, f.Dict)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	require.Equal(t, "file.rs:42", srcs[0].Ref)
}
