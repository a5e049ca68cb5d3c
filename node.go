// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"bytes"
	"io"
)

// NodeKind tags the variant of a [Node].
type NodeKind int

const (
	// KindDirectory is a node without content.
	KindDirectory NodeKind = iota + 1

	// KindAsset is a leaf whose content is resolved through an [AssetSource].
	KindAsset

	// KindNestedArchive is a node holding an entire [Archive], which is
	// flattened into the namespace of the host archive on export.
	KindNestedArchive
)

// String returns the name of the kind.
func (k NodeKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindAsset:
		return "asset"
	case KindNestedArchive:
		return "nested archive"
	}
	return "unknown"
}

// AssetSource opens the content of a leaf node. Open may be called zero,
// one or two times during a single export, and every returned reader is
// closed by the caller.
type AssetSource interface {
	Open() (io.ReadCloser, error)
}

// AssetSizer is an optional extension of [AssetSource] for sources that know
// their content length up front. Streaming exports open sized sources only
// once.
type AssetSizer interface {
	Size() (int64, error)
}

// AssetSourceFunc adapts a function to the [AssetSource] interface.
type AssetSourceFunc func() (io.ReadCloser, error)

// Open calls f.
func (f AssetSourceFunc) Open() (io.ReadCloser, error) {
	return f()
}

// BytesAsset is an [AssetSource] backed by a byte slice.
type BytesAsset []byte

// Open returns a reader over the bytes.
func (b BytesAsset) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Size returns the number of bytes.
func (b BytesAsset) Size() (int64, error) {
	return int64(len(b)), nil
}

// Archive is the read-only model consumed by the export engine.
//
// Nodes returns all nodes of the archive, ancestors before descendants, in
// the order the exporter must preserve. Nested archives appear as a single
// [KindNestedArchive] node and are enumerated only when the engine reaches
// them. The result must be stable for the duration of an export; mutating an
// archive while it is being exported is not supported.
//
// The engine detects cyclic nesting by archive identity, so implementations
// should be comparable values, typically pointers.
type Archive interface {
	Name() string
	Nodes() ([]Node, error)
}

// Node is a single location in an [Archive].
type Node struct {
	Path    Path
	Kind    NodeKind
	Asset   AssetSource
	Archive Archive
}

// DirectoryNode returns a directory node at p.
func DirectoryNode(p Path) Node {
	return Node{Path: p, Kind: KindDirectory}
}

// AssetNode returns a leaf node at p served by src.
func AssetNode(p Path, src AssetSource) Node {
	return Node{Path: p, Kind: KindAsset, Asset: src}
}

// NestedArchiveNode returns a node mounting a at p.
func NestedArchiveNode(p Path, a Archive) Node {
	return Node{Path: p, Kind: KindNestedArchive, Archive: a}
}
