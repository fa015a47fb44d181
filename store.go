// Package agentsdb ties the format/layer/layerfs/ops/query/rollup/
// exportimport/embed/blobstore/config packages into a single entry point:
// Store, a handle on one agent's directory of layer files.
package agentsdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentsdb/agentsdb/blobstore"
	"github.com/agentsdb/agentsdb/config"
	"github.com/agentsdb/agentsdb/embed"
	"github.com/agentsdb/agentsdb/exportimport"
	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/layerfs"
	"github.com/agentsdb/agentsdb/ops"
	"github.com/agentsdb/agentsdb/query"
	"github.com/agentsdb/agentsdb/rollup"
)

// Store is a handle on the four standard layer files (AGENTS.local.db,
// AGENTS.user.db, AGENTS.delta.db, AGENTS.db) living under Dir. It holds
// nothing that must be kept in sync with the files themselves — every
// operation opens the layers it needs fresh, since each write rewrites its
// target file wholesale (layerfs.Publish). What Store does hold is the
// resolved embedder, embedding cache, and config computed once at Open.
type Store struct {
	Dir      string
	Embedder embed.Embedder
	Cache    *embed.Cache
	Config   config.Config

	basePath string // overridden when WithBlobStore fetched a remote base layer
	logger   *Logger
	metrics  MetricsCollector
}

// Open resolves dir's config, embedder, and embedding cache and returns a
// ready-to-use Store. dir need not exist yet, nor contain any layer files;
// Append/Edit/Remove/Promote create a layer file's first version on first
// write, per layerfs.Publish.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	o := applyOptions(opts)

	cfg := o.config
	if cfg == nil {
		loaded, err := config.Load(config.DefaultPath(dir))
		if err != nil {
			return nil, fmt.Errorf("agentsdb: load config: %w", err)
		}
		cfg = loaded
	}

	s := &Store{
		Dir:     dir,
		Config:  *cfg,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	if o.blobStore != nil {
		cacheDir := resolveCacheDir(o, *cfg, dir)
		local, err := blobstore.FetchToLocal(ctx, o.blobStore, layerfs.Base, cacheDir)
		switch {
		case err == nil:
			s.basePath = local
		case errors.Is(err, blobstore.ErrNotFound):
			// No remote base layer yet; fall through to the local path.
		default:
			return nil, fmt.Errorf("agentsdb: fetch base layer: %w", err)
		}
	}

	handles, closeFn, err := s.openLayerSet()
	if err != nil {
		return nil, translateError(err, ctxWrite)
	}
	effective, err := rollup.RollUp(handles)
	closeFn()
	if err != nil {
		return nil, translateError(err, ctxWrite)
	}

	if o.embedder != nil {
		s.Embedder = o.embedder
	} else {
		backend := effective.Embedding.Backend
		if backend == "" {
			backend = cfg.Embedding.Backend
		}
		if backend != "" {
			e, err := embed.Open(backend, embedConfigFrom(effective, cfg.Embedding))
			if err != nil {
				return nil, translateError(err, ctxWrite)
			}
			s.Embedder = e
		}
	}

	if !o.disableCache {
		cacheDir := o.cacheDir
		if cacheDir == "" && effective.Embedding.CacheEnabled {
			cacheDir = effective.Embedding.CacheDir
		}
		if cacheDir == "" {
			cacheDir = cfg.CacheDir
		}
		if cacheDir != "" {
			c, err := embed.NewCache(cacheDir)
			if err != nil {
				return nil, fmt.Errorf("agentsdb: open embedding cache: %w", err)
			}
			s.Cache = c
		}
	}

	return s, nil
}

func resolveCacheDir(o options, cfg config.Config, dir string) string {
	if o.cacheDir != "" {
		return o.cacheDir
	}
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return filepath.Join(dir, ".agentsdb-cache")
}

func embedConfigFrom(effective rollup.EffectiveOptions, fallback config.EmbeddingConfig) embed.Config {
	cfg := embed.Config{
		Model:     effective.Embedding.Model,
		Revision:  effective.Embedding.Revision,
		Dim:       effective.Embedding.Dim,
		APIKeyEnv: effective.Embedding.APIKeyEnv,
	}
	if cfg.Model == "" {
		cfg.Model = fallback.Model
	}
	if cfg.Revision == "" {
		cfg.Revision = fallback.Revision
	}
	if cfg.Dim == 0 {
		cfg.Dim = fallback.Dim
	}
	if len(effective.Embedding.Allowlist) > 0 {
		cfg.Allowlist = make(map[string]embed.AllowlistEntry, len(effective.Embedding.Allowlist))
		for k, v := range effective.Embedding.Allowlist {
			cfg.Allowlist[k] = embed.AllowlistEntry{Revision: v.Revision, SHA256: v.SHA256}
		}
	}
	return cfg
}

// path returns the on-disk path of scope's layer file.
func (s *Store) path(scope layer.ID) string {
	switch scope {
	case layer.Local:
		return filepath.Join(s.Dir, layerfs.Local)
	case layer.User:
		return filepath.Join(s.Dir, layerfs.User)
	case layer.Delta:
		return filepath.Join(s.Dir, layerfs.Delta)
	case layer.Base:
		if s.basePath != "" {
			return s.basePath
		}
		return filepath.Join(s.Dir, layerfs.Base)
	default:
		return ""
	}
}

// openLayerSet opens every layer file that exists under Dir, in precedence
// order (local, user, delta, base), skipping any that are absent. The
// returned close function must be called once the handles are no longer
// needed.
func (s *Store) openLayerSet() ([]*layer.Handle, func(), error) {
	var handles []*layer.Handle
	for _, id := range []layer.ID{layer.Local, layer.User, layer.Delta, layer.Base} {
		p := s.path(id)
		if !layerfs.Exists(p) {
			continue
		}
		h, err := layer.Open(p, id)
		if err != nil {
			closeHandles(handles)
			return nil, nil, err
		}
		handles = append(handles, h)
	}
	return handles, func() { closeHandles(handles) }, nil
}

func closeHandles(hs []*layer.Handle) {
	for _, h := range hs {
		h.Close()
	}
}

// resolveEmbedding returns explicit if non-empty; otherwise it computes
// (and, if a cache is configured, caches) an embedding for text via
// s.Embedder.
func (s *Store) resolveEmbedding(ctx context.Context, text string, explicit []float32) ([]float32, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if s.Embedder == nil {
		return nil, errNoEmbedder
	}
	compute := func() ([]float32, error) {
		vecs, err := s.Embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("agentsdb: embedder returned no vectors for non-empty input")
		}
		return vecs[0], nil
	}
	if s.Cache == nil {
		return compute()
	}
	key := embed.CacheKey(s.Embedder.Profile(), text)
	return s.Cache.GetOrCompute(key, compute)
}

// SearchRequest is Store.Search's input: the query plus the usual k/kind
// filters. The layer set searched is always the full precedence-ordered
// set of layers currently present under Dir.
type SearchRequest struct {
	Text           string
	Vector         []float32
	K              int
	Kinds          []format.Kind
	IncludeRemoved bool
	Hybrid         bool
}

// Search runs a multi-layer vector search over every layer file currently
// present under Dir, highest precedence first.
func (s *Store) Search(ctx context.Context, req SearchRequest) (query.Response, error) {
	start := time.Now()
	handles, closeFn, err := s.openLayerSet()
	if err != nil {
		err = translateError(err, ctxWrite)
		s.logger.LogSearch(ctx, req.K, 0, err)
		s.metrics.RecordSearch(req.K, time.Since(start), err)
		return query.Response{}, err
	}
	defer closeFn()

	resp, err := query.Search(ctx, query.Request{
		Layers:         handles,
		Text:           req.Text,
		Vector:         req.Vector,
		Embedder:       s.Embedder,
		K:              req.K,
		Kinds:          req.Kinds,
		IncludeRemoved: req.IncludeRemoved,
		Hybrid:         req.Hybrid,
	})
	err = translateError(err, ctxWrite)
	s.logger.LogSearch(ctx, req.K, len(resp.Results), err)
	s.metrics.RecordSearch(req.K, time.Since(start), err)
	return resp, err
}

// AppendInput describes a new chunk. Embedding is optional; when absent,
// Append computes it from Content via the store's embedder (and embedding
// cache, if configured).
type AppendInput struct {
	ID          format.ChunkID
	Kind        format.Kind
	Content     string
	Author      format.Author
	Confidence  float32
	CreatedAtMs uint64
	Embedding   []float32
	Sources     []format.Source
}

// Append inserts in into scope's layer file. Only local and delta scope are
// accepted; base and user are administrative-only (see Promote/Accept).
func (s *Store) Append(ctx context.Context, scope layer.ID, in AppendInput) (format.ChunkID, error) {
	start := time.Now()
	embedding, err := s.resolveEmbedding(ctx, in.Content, in.Embedding)
	if err != nil {
		err = translateError(err, ctxWrite)
		s.logger.LogAppend(ctx, "append", scope, 0, err)
		s.metrics.RecordAppend(time.Since(start), err)
		return 0, err
	}
	id, err := ops.Append(s.path(scope), scope, format.NewChunk{
		ID:          in.ID,
		Kind:        in.Kind,
		Content:     in.Content,
		Author:      in.Author,
		Confidence:  in.Confidence,
		CreatedAtMs: in.CreatedAtMs,
		Embedding:   embedding,
		Sources:     in.Sources,
	})
	err = translateError(err, ctxWrite)
	s.logger.LogAppend(ctx, "append", scope, id, err)
	s.metrics.RecordAppend(time.Since(start), err)
	return id, err
}

// Edit appends a new record under req.ID, per ops.Edit.
func (s *Store) Edit(ctx context.Context, scope layer.ID, req ops.EditRequest) (format.ChunkID, error) {
	start := time.Now()
	embedding, err := s.resolveEmbedding(ctx, req.Content, req.Embedding)
	if err != nil {
		err = translateError(err, ctxWrite)
		s.logger.LogAppend(ctx, "edit", scope, 0, err)
		s.metrics.RecordAppend(time.Since(start), err)
		return 0, err
	}
	req.Embedding = embedding
	id, err := ops.Edit(s.path(scope), scope, req)
	err = translateError(err, ctxWrite)
	s.logger.LogAppend(ctx, "edit", scope, id, err)
	s.metrics.RecordAppend(time.Since(start), err)
	return id, err
}

// Remove appends a tombstone referencing victim, per ops.Remove.
func (s *Store) Remove(ctx context.Context, scope layer.ID, victim format.ChunkID, author format.Author) (format.ChunkID, error) {
	start := time.Now()
	id, err := ops.Remove(s.path(scope), scope, victim, author)
	err = translateError(err, ctxWrite)
	s.logger.LogAppend(ctx, "remove", scope, id, err)
	s.metrics.RecordAppend(time.Since(start), err)
	return id, err
}

// PromoteRequest moves a set of chunk ids from one of this Store's layers
// to another.
type PromoteRequest struct {
	FromScope    layer.ID
	ToScope      layer.ID
	IDs          []format.ChunkID
	SkipExisting bool
	Move         bool
}

// Promote moves req.IDs from FromScope to ToScope. ToScope can never be
// base; that restriction is unconditional (ops.Promote enforces it).
func (s *Store) Promote(ctx context.Context, req PromoteRequest) (ops.PromoteResult, error) {
	start := time.Now()
	res, err := ops.Promote(ops.PromoteRequest{
		FromPath:     s.path(req.FromScope),
		FromScope:    req.FromScope,
		ToPath:       s.path(req.ToScope),
		ToScope:      req.ToScope,
		IDs:          req.IDs,
		SkipExisting: req.SkipExisting,
		Move:         req.Move,
	})
	err = translateError(err, ctxPromotion)
	s.logger.LogPromote(ctx, req.FromScope, req.ToScope, len(res.Promoted), len(res.Skipped), err)
	s.metrics.RecordPromote(time.Since(start), err)
	return res, err
}

// Propose appends a propose event to scope's layer file (conventionally
// delta), per ops.Propose.
func (s *Store) Propose(ctx context.Context, scope layer.ID, req ops.ProposeRequest) (format.ChunkID, error) {
	start := time.Now()
	id, err := ops.Propose(s.path(scope), scope, req)
	err = translateError(err, ctxProposal)
	s.logger.LogPropose(ctx, id, err)
	s.metrics.RecordProposal(time.Since(start), err)
	return id, err
}

// Accept promotes a pending proposal's context chunk from fromScope into
// toScope and records the acceptance event in proposalsScope's layer.
func (s *Store) Accept(ctx context.Context, proposalsScope layer.ID, req ops.DecideRequest, fromScope, toScope layer.ID, skipExisting bool) (ops.PromoteResult, error) {
	start := time.Now()
	res, err := ops.Accept(s.path(proposalsScope), proposalsScope, req, fromScope, toScope, skipExisting)
	err = translateError(err, ctxProposal)
	s.logger.LogDecide(ctx, "accept", req.ProposalID, err)
	s.metrics.RecordProposal(time.Since(start), err)
	return res, err
}

// Reject records a rejection event in proposalsScope's layer without
// touching any layer contents.
func (s *Store) Reject(ctx context.Context, proposalsScope layer.ID, req ops.DecideRequest) error {
	start := time.Now()
	err := ops.Reject(s.path(proposalsScope), proposalsScope, req)
	err = translateError(err, ctxProposal)
	s.logger.LogDecide(ctx, "reject", req.ProposalID, err)
	s.metrics.RecordProposal(time.Since(start), err)
	return err
}

// ListPendingProposals returns scope's pending proposals in ascending id
// order.
func (s *Store) ListPendingProposals(scope layer.ID) ([]ops.Proposal, error) {
	ps, err := ops.ListPending(s.path(scope), scope)
	return ps, translateError(err, ctxProposal)
}

// ListAllProposals returns every proposal recorded in scope's layer,
// regardless of status.
func (s *Store) ListAllProposals(scope layer.ID) ([]ops.Proposal, error) {
	ps, err := ops.ListAll(s.path(scope), scope)
	return ps, translateError(err, ctxProposal)
}

// OptionsShow returns the effective, rolled-up options across every layer
// file currently present under Dir.
func (s *Store) OptionsShow() (rollup.EffectiveOptions, error) {
	handles, closeFn, err := s.openLayerSet()
	if err != nil {
		return rollup.EffectiveOptions{}, translateError(err, ctxWrite)
	}
	defer closeFn()
	effective, err := rollup.RollUp(handles)
	return effective, translateError(err, ctxWrite)
}

// Export writes scope's layer to w in the given format ("json" or
// "ndjson"), applying redact to content/embeddings.
func (s *Store) Export(ctx context.Context, scope layer.ID, outputFormat string, redact exportimport.RedactionMode, w io.Writer) error {
	start := time.Now()
	p := s.path(scope)
	h, err := layer.Open(p, scope)
	if err != nil {
		err = translateError(err, ctxWrite)
		s.logger.LogExport(ctx, scope, outputFormat, 0, err)
		s.metrics.RecordExport(time.Since(start), err)
		return err
	}
	defer h.Close()

	doc, err := exportimport.ExportLayer(h, filepath.Base(p), redact)
	if err != nil {
		err = translateError(err, ctxWrite)
		s.logger.LogExport(ctx, scope, outputFormat, 0, err)
		s.metrics.RecordExport(time.Since(start), err)
		return err
	}

	tool := exportimport.ToolInfo{Name: "agentsdb", Version: "0"}
	var data []byte
	switch outputFormat {
	case "json", "":
		bundle := exportimport.ExportBundle([]exportimport.LayerDoc{doc}, tool)
		data, err = exportimport.MarshalJSON(bundle)
	case "ndjson":
		data, err = exportimport.MarshalNDJSON([]exportimport.LayerDoc{doc}, tool)
	default:
		err = fmt.Errorf("agentsdb: unknown export format %q", outputFormat)
	}
	if err == nil {
		_, err = w.Write(data)
	}
	s.logger.LogExport(ctx, scope, outputFormat, len(doc.Chunks), err)
	s.metrics.RecordExport(time.Since(start), err)
	return err
}

// Import parses data (in the given format) and appends its chunks into
// scope's layer file, per exportimport.ImportIntoLayer.
func (s *Store) Import(ctx context.Context, scope layer.ID, data []byte, opts exportimport.ImportOptions) (exportimport.ImportOutcome, error) {
	start := time.Now()
	if opts.Embedder == nil {
		opts.Embedder = s.Embedder
	}
	bundle, err := exportimport.ParseBundle(data)
	if err != nil {
		err = translateError(err, ctxWrite)
		s.logger.LogImport(ctx, scope, 0, 0, err)
		s.metrics.RecordImport(time.Since(start), err)
		return exportimport.ImportOutcome{}, err
	}

	var outcome exportimport.ImportOutcome
	for _, doc := range bundle.Layers {
		o, err := exportimport.ImportIntoLayer(ctx, s.path(scope), doc, opts)
		outcome.Imported += o.Imported
		outcome.Skipped += o.Skipped
		outcome.DryRun = o.DryRun
		if err != nil {
			err = translateError(err, ctxWrite)
			s.logger.LogImport(ctx, scope, outcome.Imported, outcome.Skipped, err)
			s.metrics.RecordImport(time.Since(start), err)
			return outcome, err
		}
	}
	s.logger.LogImport(ctx, scope, outcome.Imported, outcome.Skipped, nil)
	s.metrics.RecordImport(time.Since(start), nil)
	return outcome, nil
}

// ChunkSummary is one row of a ListChunks page: enough to identify and
// preview a chunk without paying for its full content. Use GetChunk for
// the full record.
type ChunkSummary struct {
	ID          format.ChunkID
	Kind        format.Kind
	Author      format.Author
	Confidence  float32
	CreatedAtMs uint64
	Preview     string
	Removed     bool
}

// ListChunksRequest paginates and filters a single layer's chunk listing.
type ListChunksRequest struct {
	Offset int
	// Limit <= 0 means no limit: every match from Offset on is returned.
	Limit int
	// IncludeRemoved includes chunks that have a tombstone record against
	// them. Off by default, matching Search's default.
	IncludeRemoved bool
	// Kind restricts the listing to one kind. Empty matches every kind
	// except tombstone and options (Search's default), unless
	// Kind is set to one of those explicitly.
	Kind format.Kind
}

// ListChunks returns a page of scope's distinct chunk ids, in ascending id
// order, plus the total count of chunks matching the filters (before
// pagination). It does not merge across layers or apply precedence — use
// Search for the precedence-aware view.
func (s *Store) ListChunks(scope layer.ID, req ListChunksRequest) ([]ChunkSummary, int, error) {
	p := s.path(scope)
	if !layerfs.Exists(p) {
		return nil, 0, nil
	}
	h, err := layer.Open(p, scope)
	if err != nil {
		return nil, 0, translateError(err, ctxWrite)
	}
	defer h.Close()

	tombstoned, err := h.TombstonedIDs()
	if err != nil {
		return nil, 0, translateError(err, ctxWrite)
	}

	ids := h.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var total int
	var out []ChunkSummary
	for _, id := range ids {
		c, ok, err := h.HydrateByID(id)
		if err != nil {
			return nil, 0, translateError(err, ctxWrite)
		}
		if !ok {
			continue
		}
		if c.Kind == format.KindTombstone || c.Kind == format.KindOptions {
			if req.Kind != c.Kind {
				continue
			}
		} else if req.Kind != "" && c.Kind != req.Kind {
			continue
		}
		if !req.IncludeRemoved && tombstoned[id] {
			continue
		}

		total++
		if total <= req.Offset {
			continue
		}
		if req.Limit > 0 && len(out) >= req.Limit {
			continue
		}
		out = append(out, ChunkSummary{
			ID:          c.ID,
			Kind:        c.Kind,
			Author:      c.Author,
			Confidence:  c.Confidence,
			CreatedAtMs: c.CreatedAtMs,
			Preview:     c.Preview(),
			Removed:     tombstoned[id],
		})
	}
	return out, total, nil
}

// GetChunk hydrates one chunk by id out of scope's layer.
func (s *Store) GetChunk(scope layer.ID, id format.ChunkID) (layer.Chunk, bool, error) {
	p := s.path(scope)
	if !layerfs.Exists(p) {
		return layer.Chunk{}, false, nil
	}
	h, err := layer.Open(p, scope)
	if err != nil {
		return layer.Chunk{}, false, translateError(err, ctxWrite)
	}
	defer h.Close()

	c, ok, err := h.HydrateByID(id)
	return c, ok, translateError(err, ctxWrite)
}
