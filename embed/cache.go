package embed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"
)

// gzipThreshold is the payload size above which a cache entry is
// transparently gzip-compressed. Cache entries are typically tiny f32
// vectors, but large-dimension or i8-quantized profiles can exceed it.
const gzipThreshold = 512

// CacheKey returns the hex-encoded content address for (profile, text):
// sha256(profile_json || 0x00 || text_utf8), per spec §4.5.
func CacheKey(p Profile, text string) string {
	var buf bytes.Buffer
	buf.Write(p.CacheFingerprint())
	buf.WriteByte(0)
	buf.WriteString(text)
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	Key    string    `json:"key"`
	Vector []float32 `json:"embedding"`
}

// Cache is a content-addressed, best-effort on-disk cache of embedding
// vectors, keyed by CacheKey. Writes are atomic (temp file + rename, the
// same discipline layerfs.Publish uses for layer files); misses and write
// failures are swallowed per spec §7: Get reports any failure as a miss
// and Put returns no error at all.
type Cache struct {
	dir    string
	single singleflight.Group
}

// NewCache returns a Cache rooted at dir, creating it if necessary.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("embed: create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathForKey(key string) string {
	a, b := "xx", "yy"
	if len(key) >= 4 {
		a, b = key[0:2], key[2:4]
	}
	return filepath.Join(c.dir, a, b, key+".json")
}

// Get returns the cached vector for key, or (nil, false) on a cache miss or
// any read error — a corrupt or missing cache entry is indistinguishable
// from "never cached" to the caller.
func (c *Cache) Get(key string) ([]float32, bool) {
	path := c.pathForKey(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if gunzipped, ok := maybeGunzip(raw); ok {
		raw = gunzipped
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.Key != key {
		return nil, false
	}
	return entry.Vector, true
}

// Put stores vector under key, gzip-compressing the payload if it exceeds
// gzipThreshold bytes. Write failures are swallowed — the cache is
// optional, per spec §7.
func (c *Cache) Put(key string, vector []float32) {
	path := c.pathForKey(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	body, err := json.Marshal(cacheEntry{Key: key, Vector: vector})
	if err != nil {
		return
	}
	if len(body) > gzipThreshold {
		if compressed, ok := gzipBytes(body); ok {
			body = compressed
		}
	}
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, path)
}

// GetOrCompute returns the cached vector for key if present; otherwise it
// calls compute, caches a successful result, and returns it. Concurrent
// calls for the same key are coalesced with singleflight so a batch import
// racing on identical text only computes once.
func (c *Cache) GetOrCompute(key string, compute func() ([]float32, error)) ([]float32, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.single.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		vec, err := compute()
		if err != nil {
			return nil, err
		}
		c.Put(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func gzipBytes(b []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func maybeGunzip(b []byte) ([]byte, bool) {
	if len(b) < 2 || b[0] != 0x1f || b[1] != 0x8b {
		return nil, false
	}
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, false
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return out, true
}
