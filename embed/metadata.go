package embed

import "encoding/json"

// MetadataBlob returns the UTF-8 JSON bytes to store in a layer file's
// Layer Metadata section for profile p.
func MetadataBlob(p Profile) ([]byte, error) {
	return json.Marshal(metadataBlob{
		Backend:     p.Backend,
		Model:       p.Model,
		Revision:    p.Revision,
		Dim:         p.Dim,
		OutputNorm:  p.OutputNorm,
		CacheKeyAlg: CacheKeyAlg,
	})
}

// ParseMetadataBlob decodes a layer's Layer Metadata JSON blob into a
// Profile. blob may be nil, in which case DefaultProfile is returned —
// this is the "one/both omit the metadata section" compatibility case.
func ParseMetadataBlob(blob []byte) (Profile, error) {
	if len(blob) == 0 {
		return DefaultProfile, nil
	}
	var m metadataBlob
	if err := json.Unmarshal(blob, &m); err != nil {
		return Profile{}, err
	}
	norm := m.OutputNorm
	if norm == "" {
		norm = OutputNormNone
	}
	return Profile{
		Backend:    m.Backend,
		Model:      m.Model,
		Revision:   m.Revision,
		Dim:        m.Dim,
		OutputNorm: norm,
	}, nil
}
