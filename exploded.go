// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ExplodedBackend writes an archive as a directory tree through a [Target].
// The tree is rooted at the target location joined with the archive name.
type ExplodedBackend struct {
	t       Target
	cfg     *Config
	root    string
	modTime time.Time
	dirs    []string
	written int64
}

// NewExplodedBackend returns a backend writing to t.
func NewExplodedBackend(t Target) *ExplodedBackend {
	return &ExplodedBackend{t: t}
}

// Type implements [Backend].
func (b *ExplodedBackend) Type() string {
	return FormatExploded.String()
}

// Start checks that the target location is an existing, writable directory
// and creates the output root in it.
func (b *ExplodedBackend) Start(ctx context.Context, archive Archive, cfg *Config) error {
	b.cfg = cfg
	b.dirs = nil
	b.written = 0
	b.modTime = cfg.ModTime()

	dst := cfg.TargetLocation()
	if dst == "" {
		return newExportError(ErrInvalidTargetLocation, RootPath, fmt.Errorf("no target location"))
	}
	stat, err := b.t.Stat(dst)
	if err != nil {
		return newExportError(ErrInvalidTargetLocation, RootPath, err)
	}
	if !stat.IsDir() {
		return newExportError(ErrInvalidTargetLocation, RootPath, fmt.Errorf("not a directory: %s", dst))
	}
	if err := b.t.Writable(dst); err != nil {
		return newExportError(ErrInvalidTargetLocation, RootPath, fmt.Errorf("not writable: %w", err))
	}

	name := archive.Name()
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return newExportError(ErrInvalidTargetLocation, RootPath, fmt.Errorf("invalid archive name %q", name))
	}
	b.root = filepath.Join(dst, name)

	if err := b.mkdir(dst, Path{segments: []string{name}}); err != nil {
		return newExportError(ErrDirectoryCreationFailed, RootPath, err)
	}
	cfg.Logger().Debug("exploded output", "root", b.root)
	return nil
}

// mkdir creates rel below base after checking that no symlink or file is in
// the way.
func (b *ExplodedBackend) mkdir(base string, rel Path) error {
	if err := securityCheck(b.t, base, rel); err != nil {
		return err
	}
	dir := localPath(base, rel)
	if stat, err := b.t.Lstat(dir); err == nil && !stat.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	if err := b.t.CreateDir(dir, b.cfg.CustomCreateDirMode()); err != nil {
		return err
	}
	b.dirs = append(b.dirs, dir)
	return nil
}

// Directory creates the directory for p, including missing ancestors.
func (b *ExplodedBackend) Directory(ctx context.Context, p Path) error {
	if err := b.mkdir(b.root, p); err != nil {
		return newExportError(ErrDirectoryCreationFailed, p, err)
	}
	return nil
}

// Asset copies the content of src into the file for p.
func (b *ExplodedBackend) Asset(ctx context.Context, p Path, src AssetSource) error {
	if err := securityCheck(b.t, b.root, p); err != nil {
		return newExportError(ErrAssetWriteFailed, p, err)
	}

	rc, err := src.Open()
	if err != nil {
		return newExportError(ErrAssetWriteFailed, p, err)
	}

	file := localPath(b.root, p)
	n, err := b.t.CreateFile(file, rc, b.cfg.CustomFileMode(), b.cfg.Overwrite())
	b.written += n
	cerr := rc.Close()
	if err != nil {
		return newExportError(ErrAssetWriteFailed, p, err)
	}
	if cerr != nil {
		return newExportError(ErrAssetWriteFailed, p, fmt.Errorf("cannot close source: %w", cerr))
	}

	if !b.modTime.IsZero() {
		if err := b.t.Chtimes(file, b.modTime, b.modTime); err != nil {
			return newExportError(ErrAssetWriteFailed, p, err)
		}
	}
	return nil
}

// Finish stamps the directories with the configured modification time and
// returns the output root.
func (b *ExplodedBackend) Finish(ctx context.Context) (*Result, error) {
	if !b.modTime.IsZero() {
		// children first
		for i := len(b.dirs) - 1; i >= 0; i-- {
			if err := b.t.Chtimes(b.dirs[i], b.modTime, b.modTime); err != nil {
				return nil, newExportError(ErrDirectoryCreationFailed, RootPath, err)
			}
		}
	}
	return &Result{Path: b.root}, nil
}

// outputSize returns the number of bytes written to files.
func (b *ExplodedBackend) outputSize() int64 {
	return b.written
}
