// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"fmt"
	"io"
	"reflect"
)

// EntryKind tags a flattened [Entry].
type EntryKind int

const (
	// EntryDirectory is a directory entry.
	EntryDirectory EntryKind = iota + 1

	// EntryAsset is a content bearing entry.
	EntryAsset
)

// Entry is the unit the traversal hands to backends: an absolute path in
// the flattened namespace of the exported archive and, for assets, the
// source of its content.
type Entry struct {
	Path   Path
	Kind   EntryKind
	Source AssetSource
}

// frame is one archive on the work stack of a traversal.
type frame struct {
	archive Archive
	id      any
	mount   Path
	nodes   []Node
	next    int
}

// traversal is a resumable, pre-order, depth-first walk over an archive
// and all archives nested in it. It owns an explicit work stack instead of
// recursing, so callers can suspend between two calls to next for as long
// as they like.
type traversal struct {
	stack   []*frame
	active  map[any]struct{}
	emitted map[string]EntryKind
	pending []Entry
	nested  int64
}

// newTraversal enumerates the root of a and returns a traversal positioned
// before the first entry.
func newTraversal(a Archive) (*traversal, error) {
	t := &traversal{
		active:  map[any]struct{}{},
		emitted: map[string]EntryKind{},
	}
	if err := t.push(a, RootPath); err != nil {
		return nil, err
	}
	return t, nil
}

// archiveID returns the identity used for cycle detection. Archives whose
// dynamic value is not comparable cannot be told apart and are never
// reported as cyclic.
func archiveID(a Archive) any {
	if a == nil || !reflect.ValueOf(a).Comparable() {
		return nil
	}
	return a
}

// push enumerates a and puts it on top of the work stack.
func (t *traversal) push(a Archive, mount Path) error {
	if a == nil {
		return newExportError(ErrInvalidPath, mount, fmt.Errorf("nil archive"))
	}
	id := archiveID(a)
	if id != nil {
		if _, ok := t.active[id]; ok {
			return newExportError(ErrCyclicNesting, mount, fmt.Errorf("archive %q contains itself", a.Name()))
		}
	}
	nodes, err := a.Nodes()
	if err != nil {
		return newExportError(ErrAssetUnreadable, mount, fmt.Errorf("cannot enumerate archive %q: %w", a.Name(), err))
	}
	if id != nil {
		t.active[id] = struct{}{}
	}
	t.stack = append(t.stack, &frame{archive: a, id: id, mount: mount, nodes: nodes})
	return nil
}

// pop removes the top frame from the work stack.
func (t *traversal) pop() {
	top := t.stack[len(t.stack)-1]
	t.stack[len(t.stack)-1] = nil
	t.stack = t.stack[:len(t.stack)-1]
	if top.id != nil {
		delete(t.active, top.id)
	}
}

// queueDir queues a directory entry for p and all its ancestors that have
// not been emitted yet. The root is never emitted.
func (t *traversal) queueDir(p Path) error {
	for _, ancestor := range p.Ancestors() {
		if err := t.queueOnce(ancestor); err != nil {
			return err
		}
	}
	if p.IsRoot() {
		return nil
	}
	return t.queueOnce(p)
}

// queueOnce queues a single directory entry unless it was emitted before.
// A path already used by an asset cannot become a directory.
func (t *traversal) queueOnce(p Path) error {
	key := p.String()
	if kind, ok := t.emitted[key]; ok {
		if kind != EntryDirectory {
			return newExportError(ErrInvalidPath, p, fmt.Errorf("directory conflicts with asset"))
		}
		return nil
	}
	t.emitted[key] = EntryDirectory
	t.pending = append(t.pending, Entry{Path: p, Kind: EntryDirectory})
	return nil
}

// queueAsset queues an asset entry. Repeated assets are passed through,
// a path already used by a directory is rejected.
func (t *traversal) queueAsset(p Path, src AssetSource) error {
	key := p.String()
	if kind, ok := t.emitted[key]; ok && kind != EntryAsset {
		return newExportError(ErrInvalidPath, p, fmt.Errorf("asset conflicts with directory"))
	}
	t.emitted[key] = EntryAsset
	t.pending = append(t.pending, Entry{Path: p, Kind: EntryAsset, Source: src})
	return nil
}

// next returns the next flattened entry, or io.EOF once the archive and
// all nested archives are exhausted.
func (t *traversal) next() (Entry, error) {
	for len(t.pending) == 0 {
		if len(t.stack) == 0 {
			return Entry{}, io.EOF
		}

		top := t.stack[len(t.stack)-1]
		if top.next >= len(top.nodes) {
			t.pop()
			continue
		}
		node := top.nodes[top.next]
		top.next++

		abs := Join(top.mount, node.Path)
		switch node.Kind {
		case KindDirectory:
			if err := t.queueDir(abs); err != nil {
				return Entry{}, err
			}

		case KindAsset:
			if abs.IsRoot() {
				return Entry{}, newExportError(ErrInvalidPath, abs, fmt.Errorf("asset at archive root"))
			}
			if node.Asset == nil {
				return Entry{}, newExportError(ErrAssetUnreadable, abs, fmt.Errorf("asset without source"))
			}
			parent, _ := abs.Parent()
			if err := t.queueDir(parent); err != nil {
				return Entry{}, err
			}
			if err := t.queueAsset(abs, node.Asset); err != nil {
				return Entry{}, err
			}

		case KindNestedArchive:
			// the mount point is emitted even if the nested archive is empty
			if err := t.queueDir(abs); err != nil {
				return Entry{}, err
			}
			if err := t.push(node.Archive, abs); err != nil {
				return Entry{}, err
			}
			t.nested++

		default:
			return Entry{}, newExportError(ErrInvalidPath, abs, fmt.Errorf("unknown node kind %d", node.Kind))
		}
	}

	e := t.pending[0]
	t.pending[0] = Entry{}
	t.pending = t.pending[1:]
	return e, nil
}

// close drops the remaining work stack.
func (t *traversal) close() {
	t.stack = nil
	t.pending = nil
	t.active = map[any]struct{}{}
}
