// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// archiveWalker is an interface that represents a file walker in an archive
type archiveWalker interface {
	Type() string
	Next() (archiveEntry, error)
}

// archiveEntry is an interface that represents a file in an archive
type archiveEntry interface {
	Name() string
	IsDir() bool
	IsRegular() bool
	Size() int64
	Open() (io.ReadCloser, error)
}

// entrySource serves the content of an archive entry that can be opened
// any number of times.
type entrySource struct {
	open func() (io.ReadCloser, error)
	size int64
}

// Open opens the entry.
func (s *entrySource) Open() (io.ReadCloser, error) {
	return s.open()
}

// Size returns the uncompressed size recorded in the archive.
func (s *entrySource) Size() (int64, error) {
	return s.size, nil
}

// walkArchive drains w and converts its entries into nodes. Entries of
// sequential walkers can only be read while the walker is positioned on
// them, so their content is buffered if buffered is true.
func walkArchive(ctx context.Context, w archiveWalker, buffered bool, cfg *importConfig) ([]Node, error) {
	b := newNodeBuilder(cfg)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context error: %w", err)
		}

		ae, err := w.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read %s entry: %w", w.Type(), err)
		}

		if ae.IsDir() {
			if err := b.directory(ae.Name()); err != nil {
				return nil, err
			}
			continue
		}
		if !ae.IsRegular() {
			cfg.logger.Debug("skip entry", "type", w.Type(), "name", ae.Name())
			continue
		}

		var src AssetSource = &entrySource{open: ae.Open, size: ae.Size()}
		if buffered {
			data, err := readEntry(ae, cfg.maxEntrySize)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s entry %q: %w", w.Type(), ae.Name(), err)
			}
			src = BytesAsset(data)
		}
		if err := b.asset(ctx, ae.Name(), src); err != nil {
			return nil, err
		}
	}
	return b.nodes, nil
}

// readEntry reads the content of ae into memory.
func readEntry(ae archiveEntry, limit int64) ([]byte, error) {
	rc, err := ae.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readLimited(rc, limit)
}

// readLimited reads r into memory. An error is returned if r holds more
// than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, newLimitErrorReader(r, limit)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// nodeBuilder converts entry names into the nodes of an archive. Paths are
// unique: directories are kept once and a repeated asset replaces the
// earlier one.
type nodeBuilder struct {
	cfg   *importConfig
	nodes []Node
	index map[string]int
}

func newNodeBuilder(cfg *importConfig) *nodeBuilder {
	return &nodeBuilder{cfg: cfg, index: map[string]int{}}
}

// entryPath converts the name of an archive entry into a [Path].
func entryPath(name string) (Path, error) {
	return ParsePath(strings.TrimSuffix(filepath.ToSlash(name), "/"))
}

// directory adds a directory node.
func (b *nodeBuilder) directory(name string) error {
	p, err := entryPath(name)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return nil
	}
	if _, ok := b.index[p.String()]; ok {
		return nil
	}
	b.add(DirectoryNode(p))
	return nil
}

// asset adds an asset node, or a nested archive node if src holds an
// archive and nested archives are enabled.
func (b *nodeBuilder) asset(ctx context.Context, name string, src AssetSource) error {
	p, err := entryPath(name)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return newExportError(ErrInvalidPath, p, fmt.Errorf("entry %q has no name", name))
	}

	n := AssetNode(p, src)
	if b.cfg.nested {
		format, err := sniffSource(src)
		if err != nil {
			return fmt.Errorf("cannot inspect %s: %w", p, err)
		}
		if isArchiveFormat(format) {
			b.cfg.logger.Debug("nested archive", "path", p.String(), "format", format)
			n = NestedArchiveNode(p, newNestedArchive(ctx, p.Name(), src, b.cfg))
		}
	}

	if i, ok := b.index[p.String()]; ok {
		b.nodes[i] = n
		return nil
	}
	b.add(n)
	return nil
}

func (b *nodeBuilder) add(n Node) {
	b.index[n.Path.String()] = len(b.nodes)
	b.nodes = append(b.nodes, n)
}

// sniffSource returns the archive format of the content of src.
func sniffSource(src AssetSource) (string, error) {
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return sniffFormat(rc)
}
