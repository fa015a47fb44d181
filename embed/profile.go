package embed

import (
	"bytes"
	"fmt"
)

// OutputNorm names the normalization applied to embedder output before it
// is written into a layer's embedding matrix.
type OutputNorm string

const (
	// OutputNormNone leaves vectors as the backend produced them; query
	// scores them with a raw dot product. This is the default when a
	// layer's metadata is silent on the matter.
	OutputNormNone OutputNorm = "none"
	// OutputNormL2 L2-normalizes vectors on write; query scores them with
	// cosine similarity (equivalent to dot product on unit vectors).
	OutputNormL2 OutputNorm = "l2"
)

// CacheKeyAlg names the hash algorithm used to derive cache keys from a
// profile and input text. Only one is defined; the field exists so a
// future algorithm change can be detected rather than silently mixing
// cache entries produced under different schemes.
const CacheKeyAlg = "sha256-profile-nul-text"

// Profile is the embedding configuration a layer file was written with.
// Two layers are compatible for querying together iff Canonical is
// byte-identical (or one/both omit the profile, in which case
// DefaultProfile applies).
type Profile struct {
	Backend    string
	Model      string
	Revision   string
	Dim        int
	OutputNorm OutputNorm
}

// DefaultProfile is the profile assumed for a layer with no Layer Metadata
// section.
var DefaultProfile = Profile{Backend: "hash", Dim: 0, OutputNorm: OutputNormNone}

// Canonical renders the cross-layer compatibility fingerprint: UTF-8 JSON
// with keys in the fixed order {v, backend, model, revision, dim}, per
// spec §4.5. output_norm deliberately does not participate in this
// comparison — it governs how a query vector is normalized, not whether
// two embedding spaces are the same space.
func (p Profile) Canonical() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"v":1,"backend":`)
	writeJSONString(&buf, p.Backend)
	buf.WriteString(`,"model":`)
	writeJSONString(&buf, p.Model)
	buf.WriteString(`,"revision":`)
	writeJSONString(&buf, p.Revision)
	fmt.Fprintf(&buf, `,"dim":%d}`, p.Dim)
	return buf.Bytes()
}

// CompatibleWith reports whether p and other may be queried together:
// byte-identical canonical encodings.
func (p Profile) CompatibleWith(other Profile) bool {
	return bytes.Equal(p.Canonical(), other.Canonical())
}

// CacheFingerprint renders the profile used to derive embed cache keys:
// UTF-8 JSON with keys {v, backend, model, revision, dim, output_norm}.
// output_norm is included here (unlike Canonical) because a cached vector
// is only reusable if it was produced under the same normalization.
func (p Profile) CacheFingerprint() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"v":1,"backend":`)
	writeJSONString(&buf, p.Backend)
	buf.WriteString(`,"model":`)
	writeJSONString(&buf, p.Model)
	buf.WriteString(`,"revision":`)
	writeJSONString(&buf, p.Revision)
	fmt.Fprintf(&buf, `,"dim":%d,"output_norm":`, p.Dim)
	writeJSONString(&buf, string(p.OutputNorm))
	buf.WriteByte('}')
	return buf.Bytes()
}

// metadataBlob is the shape persisted in a layer file's Layer Metadata
// section: the embedding profile plus the cache key algorithm in use.
// Timestamps are deliberately absent — this blob is a reproducibility
// claim, and a timestamp would make two otherwise-identical layers compare
// unequal.
type metadataBlob struct {
	Backend     string     `json:"backend"`
	Model       string     `json:"model,omitempty"`
	Revision    string     `json:"revision,omitempty"`
	Dim         int        `json:"dim"`
	OutputNorm  OutputNorm `json:"output_norm"`
	CacheKeyAlg string     `json:"cache_key_alg"`
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
