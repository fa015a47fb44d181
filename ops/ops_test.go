package ops_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/layerfs"
	"github.com/agentsdb/agentsdb/ops"
)

func chunkIDs(t *testing.T, path string, scope layer.ID) []format.ChunkID {
	t.Helper()
	h, err := layer.Open(path, scope)
	require.NoError(t, err)
	defer h.Close()
	ids := h.IDs()
	// IDs() order is not contract; sort for deterministic assertions.
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	return ids
}

func TestAppendAssignsIDAndRejectsBaseAndUserScope(t *testing.T) {
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, layerfs.Delta)

	id, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "first note", Author: format.AuthorHuman,
		Embedding: []float32{1, 0},
	})
	require.NoError(t, err)
	require.Equal(t, format.ChunkID(1), id)

	userPath := filepath.Join(dir, layerfs.User)
	_, err = ops.Append(userPath, layer.User, format.NewChunk{
		Kind: format.KindNote, Content: "nope", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.Error(t, err)
	var scopeErr *ops.ErrScopeNotWritable
	require.ErrorAs(t, err, &scopeErr)

	basePath := filepath.Join(dir, layerfs.Base)
	_, err = ops.Append(basePath, layer.Base, format.NewChunk{
		Kind: format.KindNote, Content: "nope", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.Error(t, err)
}

func TestAppendRejectsScopeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Delta)
	_, err := ops.Append(path, layer.Local, format.NewChunk{
		Kind: format.KindNote, Content: "x", Author: format.AuthorHuman, Embedding: []float32{1},
	})
	require.Error(t, err)
	var mismatch *ops.ErrScopeMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestAdminAppendAllowsUserScope(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.User)
	id, err := ops.AdminAppend(path, layer.User, format.NewChunk{
		Kind: format.KindNote, Content: "curated", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)
	require.Equal(t, format.ChunkID(1), id)
}

func TestEditAppendsSupersedingRecordAndOptionalTombstone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Local)

	id, err := ops.Append(path, layer.Local, format.NewChunk{
		Kind: format.KindNote, Content: "v1", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	_, err = ops.Edit(path, layer.Local, ops.EditRequest{
		ID: id, Kind: format.KindNote, Content: "v2", Author: format.AuthorHuman,
		Embedding: []float32{0, 1}, TombstoneOld: true,
	})
	require.NoError(t, err)

	h, err := layer.Open(path, layer.Local)
	require.NoError(t, err)
	defer h.Close()

	chunk, ok, err := h.HydrateByID(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", chunk.Content)

	tombstoned, err := h.TombstonedIDs()
	require.NoError(t, err)
	require.True(t, tombstoned[id])
}

func TestRemoveAppendsTombstoneForVictim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Delta)

	id, err := ops.Append(path, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "doomed", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	_, err = ops.Remove(path, layer.Delta, id, format.AuthorHuman)
	require.NoError(t, err)

	h, err := layer.Open(path, layer.Delta)
	require.NoError(t, err)
	defer h.Close()

	tombstoned, err := h.TombstonedIDs()
	require.NoError(t, err)
	require.True(t, tombstoned[id])
}

// TestPromoteDeltaToUserWithSkipExisting exercises spec scenario S4:
// promoting from delta to user, with one id already present in the
// destination and one new.
func TestPromoteDeltaToUserWithSkipExisting(t *testing.T) {
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, layerfs.Delta)
	userPath := filepath.Join(dir, layerfs.User)

	id1, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "carried over", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)
	id2, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "already there", Author: format.AuthorHuman, Embedding: []float32{0, 1},
	})
	require.NoError(t, err)

	_, err = ops.AdminAppend(userPath, layer.User, format.NewChunk{
		ID: id2, Kind: format.KindNote, Content: "already there", Author: format.AuthorHuman, Embedding: []float32{0, 1},
	})
	require.NoError(t, err)

	res, err := ops.Promote(ops.PromoteRequest{
		FromPath: deltaPath, FromScope: layer.Delta,
		ToPath: userPath, ToScope: layer.User,
		IDs:          []format.ChunkID{id1, id2},
		SkipExisting: true,
	})
	require.NoError(t, err)
	require.Equal(t, []format.ChunkID{id1}, res.Promoted)
	require.Equal(t, []format.ChunkID{id2}, res.Skipped)

	userIDs := chunkIDs(t, userPath, layer.User)
	require.Contains(t, userIDs, id1)
	require.Contains(t, userIDs, id2)
}

func TestPromoteNeverTargetsBaseScope(t *testing.T) {
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, layerfs.Delta)
	basePath := filepath.Join(dir, layerfs.Base)

	id, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "x", Author: format.AuthorHuman, Embedding: []float32{1},
	})
	require.NoError(t, err)

	_, err = ops.Promote(ops.PromoteRequest{
		FromPath: deltaPath, FromScope: layer.Delta,
		ToPath: basePath, ToScope: layer.Base,
		IDs: []format.ChunkID{id},
	})
	require.Error(t, err)
}

func TestPromoteWithMoveTombstonesSource(t *testing.T) {
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, layerfs.Delta)
	userPath := filepath.Join(dir, layerfs.User)

	id, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "migrating", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	res, err := ops.Promote(ops.PromoteRequest{
		FromPath: deltaPath, FromScope: layer.Delta,
		ToPath: userPath, ToScope: layer.User,
		IDs:  []format.ChunkID{id},
		Move: true,
	})
	require.NoError(t, err)
	require.Equal(t, []format.ChunkID{id}, res.Promoted)

	h, err := layer.Open(deltaPath, layer.Delta)
	require.NoError(t, err)
	defer h.Close()
	tombstoned, err := h.TombstonedIDs()
	require.NoError(t, err)
	require.True(t, tombstoned[id])
}

// TestProposalLifecycle exercises spec scenario S5: propose, list pending,
// accept with skip_existing, list pending becomes empty, list all shows
// accepted.
func TestProposalLifecycle(t *testing.T) {
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, layerfs.Delta)
	userPath := filepath.Join(dir, layerfs.User)

	ctxID, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "candidate fact", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	proposalsPath := deltaPath
	proposalID, err := ops.Propose(proposalsPath, layer.Delta, ops.ProposeRequest{
		ContextID: ctxID,
		FromPath:  layerfs.Delta,
		ToPath:    layerfs.User,
		Title:     "promote candidate fact",
		Author:    format.AuthorHuman,
	})
	require.NoError(t, err)

	pending, err := ops.ListPending(proposalsPath, layer.Delta)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, proposalID, pending[0].ID)
	require.Equal(t, ops.ProposalPending, pending[0].Status)

	res, err := ops.Accept(proposalsPath, layer.Delta, ops.DecideRequest{
		ProposalID: proposalID, Actor: "human",
	}, layer.Delta, layer.User, true)
	require.NoError(t, err)
	require.Equal(t, []format.ChunkID{ctxID}, res.Promoted)

	pending, err = ops.ListPending(proposalsPath, layer.Delta)
	require.NoError(t, err)
	require.Empty(t, pending)

	all, err := ops.ListAll(proposalsPath, layer.Delta)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, ops.ProposalAccepted, all[0].Status)

	userIDs := chunkIDs(t, userPath, layer.User)
	require.Contains(t, userIDs, ctxID)
}

func TestRejectProposalLeavesLayersUntouched(t *testing.T) {
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, layerfs.Delta)
	userPath := filepath.Join(dir, layerfs.User)

	ctxID, err := ops.Append(deltaPath, layer.Delta, format.NewChunk{
		Kind: format.KindNote, Content: "rejected fact", Author: format.AuthorHuman, Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	proposalID, err := ops.Propose(deltaPath, layer.Delta, ops.ProposeRequest{
		ContextID: ctxID, Author: format.AuthorHuman,
	})
	require.NoError(t, err)

	err = ops.Reject(deltaPath, layer.Delta, ops.DecideRequest{
		ProposalID: proposalID, Actor: "human", Reason: "not relevant",
	})
	require.NoError(t, err)

	all, err := ops.ListAll(deltaPath, layer.Delta)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, ops.ProposalRejected, all[0].Status)
	require.Equal(t, "not relevant", all[0].DecisionReason)

	require.False(t, layerfs.Exists(userPath))
}
