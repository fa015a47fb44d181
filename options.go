package agentsdb

import (
	"log/slog"

	"github.com/agentsdb/agentsdb/blobstore"
	"github.com/agentsdb/agentsdb/config"
	"github.com/agentsdb/agentsdb/embed"
)

type options struct {
	config           *config.Config
	embedder         embed.Embedder
	cacheDir         string
	disableCache     bool
	blobStore        blobstore.BlobStore
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open.
//
// Breaking changes are expected while agentsdb is pre-release.
type Option func(*options)

// WithConfig supplies an already-loaded config.Config, bypassing Open's
// default of reading agentsdb.yaml from dir.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithEmbedder pins the embedder Open would otherwise resolve from the
// layer set's rolled-up options (or agentsdb.yaml's default backend).
// Passing an explicit Embedder skips backend name resolution entirely, so
// it also works for backends that never registered themselves with embed
// (test doubles, for example).
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithCacheDir overrides where the embedding cache and, if the store is
// backed by a remote object store, fetched base-layer copies are kept.
// Takes precedence over agentsdb.yaml's cache_dir.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithoutEmbeddingCache disables the on-disk embedding cache regardless of
// what the layer set's options roll-up or agentsdb.yaml asks for.
func WithoutEmbeddingCache() Option {
	return func(o *options) {
		o.disableCache = true
	}
}

// WithBlobStore makes dir's base layer a local cache of a blob living in
// store, fetched via blobstore.FetchToLocal before it is mapped. Absent
// this option, all four layer files are read directly from dir.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = store
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations. Pass nil to
// disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger at the given level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
