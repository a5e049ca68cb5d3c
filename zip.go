// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ZipBackend writes an archive into a zip container. The container is
// built in a temporary file next to the destination, or in memory if
// configured, and moved into place by Finish.
type ZipBackend struct {
	cfg     *Config
	dst     string
	modTime time.Time
	method  uint16

	tmp *os.File
	mem *bytes.Buffer
	zw  *zip.Writer

	written int64
}

// NewZipBackend returns a new zip backend.
func NewZipBackend() *ZipBackend {
	return &ZipBackend{}
}

// Type implements [Backend].
func (b *ZipBackend) Type() string {
	return FormatZip.String()
}

// Start resolves the destination file and prepares the container. If the
// target location is an existing directory, the container is written into
// it, named after the archive.
func (b *ZipBackend) Start(ctx context.Context, archive Archive, cfg *Config) error {
	b.cfg = cfg
	b.modTime = resolveModTime(cfg)
	b.written = 0

	dst, err := zipDestination(archive, cfg)
	if err != nil {
		return newExportError(ErrInvalidTargetLocation, RootPath, err)
	}
	b.dst = dst

	switch cfg.ZipMethod() {
	case ZipStore:
		b.method = zip.Store
	case ZipDeflate:
		b.method = zip.Deflate
	case ZipZstd:
		b.method = zstd.ZipMethodWinZip
	default:
		return newExportError(ErrContainerWriteFailed, RootPath, fmt.Errorf("unsupported zip method %d", cfg.ZipMethod()))
	}

	var out io.Writer
	if cfg.CacheInMemory() {
		b.mem = &bytes.Buffer{}
		out = b.mem
	} else {
		tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
		if err != nil {
			return newExportError(ErrContainerWriteFailed, RootPath, fmt.Errorf("cannot create temporary file: %w", err))
		}
		b.tmp = tmp
		out = tmp
	}

	b.zw = zip.NewWriter(out)
	if b.method == zstd.ZipMethodWinZip {
		b.zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	}
	cfg.Logger().Debug("zip output", "path", dst, "method", cfg.ZipMethod().String(), "in_memory", cfg.CacheInMemory())
	return nil
}

// zipDestination returns the path of the container file.
func zipDestination(archive Archive, cfg *Config) (string, error) {
	dst := cfg.TargetLocation()
	if dst == "" {
		return "", fmt.Errorf("no target location")
	}

	stat, err := os.Stat(dst)
	if err == nil && stat.IsDir() {
		name := archive.Name()
		if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
			return "", fmt.Errorf("invalid archive name %q", name)
		}
		dst = filepath.Join(dst, name)
		stat, err = os.Stat(dst)
	}

	switch {
	case err == nil && stat.IsDir():
		return "", fmt.Errorf("is a directory: %s", dst)
	case err == nil && !cfg.Overwrite():
		return "", fmt.Errorf("file already exists: %s", dst)
	case err != nil && !os.IsNotExist(err):
		return "", err
	}

	parent, err := os.Stat(filepath.Dir(dst))
	if err != nil {
		return "", fmt.Errorf("invalid parent directory: %w", err)
	}
	if !parent.IsDir() {
		return "", fmt.Errorf("parent is not a directory: %s", filepath.Dir(dst))
	}
	return dst, nil
}

// Directory adds a directory entry.
func (b *ZipBackend) Directory(ctx context.Context, p Path) error {
	hdr := &zip.FileHeader{
		Name:     p.String() + "/",
		Method:   zip.Store,
		Modified: b.modTime,
	}
	hdr.SetMode(fs.ModeDir | b.cfg.CustomCreateDirMode().Perm())
	if _, err := b.zw.CreateHeader(hdr); err != nil {
		return newExportError(ErrContainerWriteFailed, p, err)
	}
	return nil
}

// Asset adds a file entry compressed with the configured method.
func (b *ZipBackend) Asset(ctx context.Context, p Path, src AssetSource) error {
	rc, err := src.Open()
	if err != nil {
		return newExportError(ErrContainerWriteFailed, p, err)
	}
	defer rc.Close()

	hdr := &zip.FileHeader{
		Name:     p.String(),
		Method:   b.method,
		Modified: b.modTime,
	}
	hdr.SetMode(b.cfg.CustomFileMode().Perm())
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return newExportError(ErrContainerWriteFailed, p, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return newExportError(ErrContainerWriteFailed, p, err)
	}
	return nil
}

// Finish writes the central directory and moves the container to its
// destination.
func (b *ZipBackend) Finish(ctx context.Context) (*Result, error) {
	if err := b.zw.Close(); err != nil {
		b.abort()
		return nil, newExportError(ErrContainerWriteFailed, RootPath, err)
	}

	if b.mem != nil {
		b.written = int64(b.mem.Len())
		if err := os.WriteFile(b.dst, b.mem.Bytes(), b.cfg.CustomFileMode().Perm()); err != nil {
			return nil, newExportError(ErrContainerWriteFailed, RootPath, err)
		}
		b.mem = nil
	} else {
		if stat, err := b.tmp.Stat(); err == nil {
			b.written = stat.Size()
		}
		if err := b.tmp.Chmod(b.cfg.CustomFileMode().Perm()); err != nil {
			b.abort()
			return nil, newExportError(ErrContainerWriteFailed, RootPath, err)
		}
		if err := b.tmp.Close(); err != nil {
			b.abort()
			return nil, newExportError(ErrContainerWriteFailed, RootPath, err)
		}
		if err := os.Rename(b.tmp.Name(), b.dst); err != nil {
			b.abort()
			return nil, newExportError(ErrContainerWriteFailed, RootPath, err)
		}
		b.tmp = nil
	}

	if !b.cfg.ModTime().IsZero() {
		if err := os.Chtimes(b.dst, b.modTime, b.modTime); err != nil {
			return nil, newExportError(ErrContainerWriteFailed, RootPath, err)
		}
	}
	return &Result{Path: b.dst}, nil
}

// abort drops the partially written container.
func (b *ZipBackend) abort() {
	if b.tmp != nil {
		b.tmp.Close()
		os.Remove(b.tmp.Name())
		b.tmp = nil
	}
	b.mem = nil
}

// outputSize returns the size of the written container.
func (b *ZipBackend) outputSize() int64 {
	return b.written
}
