// Package rollup merges kind=="options" chunks across an open layer set into
// a single effective configuration, per the precedence order local > user >
// delta > base. Merge semantics: deep merge on JSON objects, scalar override
// by higher precedence, arrays replace wholesale. Store.Open computes it once
// to resolve the embedder; Store.OptionsShow computes it afresh from the
// current layer files on each call.
package rollup

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
)

// ModelRevision identifies a pinned local model by name and revision.
type ModelRevision struct {
	Model    string `json:"model"`
	Revision string `json:"revision"`
}

// AllowlistEntry pins one model revision to its expected content hash.
type AllowlistEntry struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

// EmbeddingOptions is the effective embedding configuration, rolled up
// from every open layer's options chunks.
type EmbeddingOptions struct {
	Backend      string                    `json:"backend"`
	Dim          int                       `json:"dim"`
	Model        string                    `json:"model"`
	Revision     string                    `json:"revision"`
	CacheEnabled bool                      `json:"cache_enabled"`
	CacheDir     string                    `json:"cache_dir"`
	APIKeyEnv    string                    `json:"api_key_env"`
	Allowlist    map[string]AllowlistEntry `json:"allowlist"`
}

// EffectiveOptions is the fully resolved options roll-up for an open layer
// set, plus per-leaf-key provenance.
type EffectiveOptions struct {
	Embedding   EmbeddingOptions
	provenance  map[string]layer.ID
	mergedExtra map[string]any
}

// Provenance reports, for each leaf key path rolled up, which layer last
// wrote it (diagnostic surface for options_show).
func (o EffectiveOptions) Provenance() map[string]layer.ID {
	out := make(map[string]layer.ID, len(o.provenance))
	for k, v := range o.provenance {
		out[k] = v
	}
	return out
}

// Raw returns the fully deep-merged options object, including any keys
// beyond the well-known embedding.* fields.
func (o EffectiveOptions) Raw() map[string]any { return o.mergedExtra }

type layerChunks struct {
	id     layer.ID
	chunks []map[string]any
}

// RollUp reads every "options" chunk in each handle (latest record per id
// only — superseded records never contribute) and deep-merges them in
// precedence order. handles must already be ordered highest-precedence
// first (Local, User, Delta, Base); a nil entry is skipped, letting callers
// pass a sparse open set.
func RollUp(handlesHighToLow []*layer.Handle) (EffectiveOptions, error) {
	perLayer := make([]layerChunks, 0, len(handlesHighToLow))
	for _, h := range handlesHighToLow {
		if h == nil {
			continue
		}
		contents, err := optionsContentsInLayer(h)
		if err != nil {
			return EffectiveOptions{}, fmt.Errorf("rollup: layer %s: %w", h.ID(), err)
		}
		perLayer = append(perLayer, layerChunks{id: h.ID(), chunks: contents})
	}

	merged := map[string]any{}
	provenance := map[string]layer.ID{}

	// Merge from lowest precedence to highest so that a later (higher
	// precedence) write always wins the provenance tie-break.
	for i := len(perLayer) - 1; i >= 0; i-- {
		lc := perLayer[i]
		for _, obj := range lc.chunks {
			deepMerge(merged, obj, "", provenance, lc.id)
		}
	}

	opts := EffectiveOptions{
		Embedding:   decodeEmbeddingOptions(merged),
		provenance:  provenance,
		mergedExtra: merged,
	}
	return opts, nil
}

func optionsContentsInLayer(h *layer.Handle) ([]map[string]any, error) {
	var out []map[string]any
	for i := 0; i < h.ChunkCount(); i++ {
		r, ok := h.ChunkByIndex(i)
		if !ok {
			continue
		}
		kind, err := h.Kind(r)
		if err != nil {
			return nil, err
		}
		if kind != format.KindOptions {
			continue
		}
		if latest, ok := h.ChunkByID(r.ID); !ok || latest != r {
			continue
		}
		content, err := h.Content(r)
		if err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(content), &obj); err != nil {
			return nil, fmt.Errorf("chunk %d: options content is not a JSON object: %w", r.ID, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// deepMerge writes src into dst in place, recording provenance for every
// leaf key (non-object, non-array JSON value) encountered. Arrays replace
// wholesale rather than merging element-wise.
func deepMerge(dst, src map[string]any, prefix string, provenance map[string]layer.ID, owner layer.ID) {
	for k, v := range src {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		srcObj, srcIsObj := v.(map[string]any)
		dstObj, dstIsObj := dst[k].(map[string]any)
		if srcIsObj && dstIsObj {
			deepMerge(dstObj, srcObj, path, provenance, owner)
			continue
		}
		if srcIsObj {
			fresh := map[string]any{}
			dst[k] = fresh
			deepMerge(fresh, srcObj, path, provenance, owner)
			continue
		}
		dst[k] = v
		provenance[path] = owner
	}
}

func decodeEmbeddingOptions(merged map[string]any) EmbeddingOptions {
	out := EmbeddingOptions{Allowlist: map[string]AllowlistEntry{}}
	emb, ok := merged["embedding"].(map[string]any)
	if !ok {
		return out
	}
	if v, ok := emb["backend"].(string); ok {
		out.Backend = v
	}
	if v, ok := emb["dim"].(float64); ok {
		out.Dim = int(v)
	}
	if v, ok := emb["model"].(string); ok {
		out.Model = v
	}
	if v, ok := emb["revision"].(string); ok {
		out.Revision = v
	}
	if v, ok := emb["cache_enabled"].(bool); ok {
		out.CacheEnabled = v
	}
	if v, ok := emb["cache_dir"].(string); ok {
		out.CacheDir = v
	}
	if v, ok := emb["api_key_env"].(string); ok {
		out.APIKeyEnv = v
	}
	if tbl, ok := emb["allowlist"].(map[string]any); ok {
		for model, raw := range tbl {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			e := AllowlistEntry{}
			if v, ok := entry["revision"].(string); ok {
				e.Revision = v
			}
			if v, ok := entry["sha256"].(string); ok {
				e.SHA256 = v
			}
			out.Allowlist[model] = e
		}
	}
	return out
}

// SortedProvenanceKeys returns the provenance map's keys in sorted order,
// for deterministic diagnostic output.
func SortedProvenanceKeys(p map[string]layer.ID) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
