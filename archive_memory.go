// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"fmt"
	"sync"
)

// MemoryArchive is an [Archive] assembled in memory. Nodes are exported in
// the order they were added. Missing parent directories do not need to be
// added, they are created by the export.
//
// A MemoryArchive is safe for concurrent use, but must not be changed while
// it is exported.
type MemoryArchive struct {
	name  string
	mu    sync.RWMutex
	nodes []Node
	index map[string]struct{}
}

// NewMemoryArchive returns an empty archive named name.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{name: name, index: map[string]struct{}{}}
}

// Name returns the name of the archive.
func (a *MemoryArchive) Name() string {
	return a.name
}

// Nodes returns a copy of all nodes.
func (a *MemoryArchive) Nodes() ([]Node, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Node(nil), a.nodes...), nil
}

// Add adds n. The path of n must not be the root and must not be taken
// by another node.
func (a *MemoryArchive) Add(n Node) error {
	if n.Path.IsRoot() {
		return newExportError(ErrInvalidPath, n.Path, fmt.Errorf("cannot add %s at archive root", n.Kind))
	}
	switch n.Kind {
	case KindDirectory:
	case KindAsset:
		if n.Asset == nil {
			return newExportError(ErrInvalidPath, n.Path, fmt.Errorf("asset without source"))
		}
	case KindNestedArchive:
		if n.Archive == nil {
			return newExportError(ErrInvalidPath, n.Path, fmt.Errorf("nested archive is nil"))
		}
	default:
		return newExportError(ErrInvalidPath, n.Path, fmt.Errorf("unknown node kind %d", n.Kind))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	key := n.Path.String()
	if _, ok := a.index[key]; ok {
		return newExportError(ErrInvalidPath, n.Path, fmt.Errorf("path already taken"))
	}
	a.index[key] = struct{}{}
	a.nodes = append(a.nodes, n)
	return nil
}

// AddDirectory adds a directory at path.
func (a *MemoryArchive) AddDirectory(path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return a.Add(DirectoryNode(p))
}

// AddAsset adds a file at path served by src.
func (a *MemoryArchive) AddAsset(path string, src AssetSource) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return a.Add(AssetNode(p, src))
}

// AddBytes adds a file at path with data as content.
func (a *MemoryArchive) AddBytes(path string, data []byte) error {
	return a.AddAsset(path, BytesAsset(data))
}

// AddArchive mounts nested at path.
func (a *MemoryArchive) AddArchive(path string, nested Archive) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return a.Add(NestedArchiveNode(p, nested))
}
