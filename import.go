// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ImportOption adjusts how existing files are exposed as an [Archive].
type ImportOption func(*importConfig)

// importConfig holds the options of an importer.
type importConfig struct {
	// logger stream for the import
	logger logger

	// maxEntrySize is the maximum number of bytes buffered per entry of
	// sequential formats and per nested archive. Set value to -1 to disable the check.
	maxEntrySize int64

	// name overrides the archive name
	name string

	// nested turns entries holding an archive into nested archives
	nested bool
}

const (
	defaultMaxEntrySize = 1 << (10 * 3) // 1 Gb
	defaultNested       = false         // keep archives as assets
)

func newImportConfig(opts ...ImportOption) *importConfig {
	cfg := &importConfig{
		logger:       defaultLogger,
		maxEntrySize: defaultMaxEntrySize,
		nested:       defaultNested,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithArchiveName options pattern function to set the name of the imported
// archive. By default the base name of the file is used.
func WithArchiveName(name string) ImportOption {
	return func(c *importConfig) {
		c.name = name
	}
}

// WithImportLogger options pattern function to set a custom logger.
func WithImportLogger(logger logger) ImportOption {
	return func(c *importConfig) {
		c.logger = logger
	}
}

// WithMaxEntrySize options pattern function to set the maximum number of bytes
// that are held in memory per entry. (-1 to disable check)
func WithMaxEntrySize(size int64) ImportOption {
	return func(c *importConfig) {
		c.maxEntrySize = size
	}
}

// WithNestedArchives options pattern function to expose entries that hold an
// archive (zip, 7z, rar, tar and compressed tar) as nested archives.
func WithNestedArchives(enable bool) ImportOption {
	return func(c *importConfig) {
		c.nested = enable
	}
}

// isArchiveFormat returns true for formats that hold a file hierarchy.
func isArchiveFormat(format string) bool {
	switch {
	case format == fileExtensionZip, format == fileExtension7zip, format == fileExtensionRar:
		return true
	case format == fileExtensionTar, strings.HasPrefix(format, fileExtensionTar+"."):
		return true
	}
	return false
}

// FileArchive is an [Archive] read from a file. It must be closed after the
// last export.
type FileArchive struct {
	Archive
	format string
	f      *os.File
}

// Format returns the detected format, e.g. "zip" or "tar.gz".
func (a *FileArchive) Format() string {
	return a.format
}

// Close closes the underlying file.
func (a *FileArchive) Close() error {
	return a.f.Close()
}

// OpenArchive opens the file at path and exposes its content as an
// [Archive]. The format is detected by its magic bytes. Archives (zip, 7z,
// rar, tar and compressed tar) are exposed with their hierarchy, a
// compressed single file as an archive holding the decompressed file.
//
// Zip and 7z entries are read from the file when they are exported, entries
// of sequential formats are buffered in memory on the first enumeration.
func OpenArchive(ctx context.Context, path string, opts ...ImportOption) (*FileArchive, error) {
	cfg := newImportConfig(opts...)
	if cfg.name == "" {
		cfg.name = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot stat archive: %w", err)
	}
	if !stat.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrUnsupportedArchive, path)
	}

	a, format, err := newArchive(ctx, cfg.name, f, stat.Size(), cfg, true)
	if err != nil {
		f.Close()
		return nil, err
	}
	cfg.logger.Info("opened archive", "path", path, "format", format)
	return &FileArchive{Archive: a, format: format, f: f}, nil
}

// newArchive returns the archive stored in the size bytes of ra. If single
// is true, a compressed file that holds no archive is accepted as well.
func newArchive(ctx context.Context, name string, ra io.ReaderAt, size int64, cfg *importConfig, single bool) (Archive, string, error) {
	format, err := sniffFormat(io.NewSectionReader(ra, 0, size))
	if err != nil {
		return nil, "", fmt.Errorf("cannot detect format: %w", err)
	}

	var walk func() ([]Node, error)
	switch {
	case format == fileExtensionZip:
		walk = func() ([]Node, error) { return walkZip(ctx, ra, size, cfg) }
	case format == fileExtension7zip:
		walk = func() ([]Node, error) { return walk7zip(ctx, ra, size, cfg) }
	case format == fileExtensionRar:
		walk = func() ([]Node, error) { return walkRar(ctx, io.NewSectionReader(ra, 0, size), cfg) }
	case format == fileExtensionTar:
		walk = func() ([]Node, error) { return walkTar(ctx, io.NewSectionReader(ra, 0, size), "", cfg) }
	case strings.HasPrefix(format, fileExtensionTar+"."):
		ext := strings.TrimPrefix(format, fileExtensionTar+".")
		walk = func() ([]Node, error) { return walkTar(ctx, io.NewSectionReader(ra, 0, size), ext, cfg) }
	case format != "" && single:
		walk = func() ([]Node, error) { return decompressedNodes(name, format, ra, size) }
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedArchive, name)
	}
	return &lazyArchive{name: name, walk: walk}, format, nil
}

// decompressedNodes returns the single asset of a compressed file, named
// like the file without the codec extension.
func decompressedNodes(name, ext string, ra io.ReaderAt, size int64) ([]Node, error) {
	inner := strings.TrimSuffix(name, "."+ext)
	if inner == name || inner == "" {
		inner = "data"
	}
	p, err := ParsePath(inner)
	if err != nil {
		return nil, err
	}
	src := AssetSourceFunc(func() (io.ReadCloser, error) {
		return availableCodecs[ext].NewReader(io.NewSectionReader(ra, 0, size))
	})
	return []Node{AssetNode(p, src)}, nil
}

// lazyArchive enumerates its nodes on first use and returns the same nodes
// on every later call.
type lazyArchive struct {
	name  string
	walk  func() ([]Node, error)
	once  sync.Once
	nodes []Node
	err   error
}

// Name returns the name of the archive.
func (a *lazyArchive) Name() string {
	return a.name
}

// Nodes implements [Archive].
func (a *lazyArchive) Nodes() ([]Node, error) {
	a.once.Do(func() {
		a.nodes, a.err = a.walk()
	})
	if a.err != nil {
		return nil, a.err
	}
	return append([]Node(nil), a.nodes...), nil
}

// newNestedArchive returns an archive whose content is read from src when
// it is enumerated.
func newNestedArchive(ctx context.Context, name string, src AssetSource, cfg *importConfig) Archive {
	return &lazyArchive{
		name: name,
		walk: func() ([]Node, error) {
			rc, err := src.Open()
			if err != nil {
				return nil, err
			}
			data, err := readLimited(rc, cfg.maxEntrySize)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("cannot read nested archive %q: %w", name, err)
			}
			a, _, err := newArchive(ctx, name, bytes.NewReader(data), int64(len(data)), cfg, false)
			if err != nil {
				return nil, err
			}
			return a.Nodes()
		},
	}
}
