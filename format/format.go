// Package format implements the binary layer file codec: header, section
// table, string dictionary, chunk table, embedding matrix, optional
// relationships, and optional layer metadata. All multi-byte fields are
// little-endian. The header's sections_offset and each section entry's
// offset are absolute from the start of the file; offsets stored inside a
// section's own header are relative to the start of that section.
package format

import "fmt"

// Magic identifies an agentsdb layer file. The mnemonic bytes are A, G, D, B.
const Magic uint32 = 0x41474442

// VersionMajor is the only supported major version. A file with a different
// major version cannot be read by this package.
const VersionMajor uint16 = 1

// VersionMinor is advisory; readers must accept any minor version for the
// supported major version.
const VersionMinor uint16 = 0

// HeaderSize is the fixed size in bytes of the file header.
const HeaderSize = 40

// SectionEntrySize is the fixed size in bytes of one section table entry.
const SectionEntrySize = 24

// SectionKind enumerates the section kinds that can appear in a section table.
type SectionKind uint32

const (
	SectionStringDictionary  SectionKind = 1
	SectionChunkTable        SectionKind = 2
	SectionEmbeddingMatrix   SectionKind = 3
	SectionRelationships     SectionKind = 4
	SectionLayerMetadata     SectionKind = 5
)

func (k SectionKind) String() string {
	switch k {
	case SectionStringDictionary:
		return "string-dictionary"
	case SectionChunkTable:
		return "chunk-table"
	case SectionEmbeddingMatrix:
		return "embedding-matrix"
	case SectionRelationships:
		return "relationships"
	case SectionLayerMetadata:
		return "layer-metadata"
	default:
		return fmt.Sprintf("section-kind(%d)", uint32(k))
	}
}

// ChunkID identifies a chunk within a single layer file. 0 is reserved and
// never assigned to a written chunk.
type ChunkID uint32

// Kind is an open string vocabulary describing what a chunk represents.
// Well-known values are exported as constants, but any string is accepted.
type Kind string

const (
	KindNote           Kind = "note"
	KindInvariant      Kind = "invariant"
	KindDecision       Kind = "decision"
	KindDerivedSummary Kind = "derived-summary"
	KindOptions        Kind = "options"
	KindTombstone      Kind = "tombstone"
	KindProposalEvent  Kind = "meta.proposal_event"
)

// Author identifies who produced a chunk.
type Author string

const (
	AuthorHuman Author = "human"
	AuthorMCP   Author = "mcp"
)

// ElementType identifies the scalar type of embedding matrix rows.
type ElementType uint32

const (
	ElementF32 ElementType = 1
	ElementI8  ElementType = 2
)

// RelationKind distinguishes the two kinds of source reference a
// Relationships record can carry.
type RelationKind uint32

const (
	RelationChunkRef  RelationKind = 1
	RelationStringRef RelationKind = 2
)

// Source is a tagged union over the two kinds of chunk provenance reference.
// Exactly one of ChunkID/Ref is meaningful, selected by Kind.
type Source struct {
	Kind RelationKind
	// ChunkID is populated when Kind == RelationChunkRef.
	ChunkID ChunkID
	// Ref is populated when Kind == RelationStringRef (an opaque string such
	// as "file.rs:42").
	Ref string
}

// SourceChunk builds a Source referencing another chunk id.
func SourceChunk(id ChunkID) Source { return Source{Kind: RelationChunkRef, ChunkID: id} }

// SourceRef builds a Source referencing an opaque string.
func SourceRef(ref string) Source { return Source{Kind: RelationStringRef, Ref: ref} }
