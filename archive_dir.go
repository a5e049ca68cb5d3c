// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"context"
	"fmt"
	"io"
	"io/fs"
)

// fsSource serves a regular file of an [fs.FS].
type fsSource struct {
	fsys fs.FS
	name string
	size int64
}

// Open opens the file.
func (s *fsSource) Open() (io.ReadCloser, error) {
	return s.fsys.Open(s.name)
}

// Size returns the file size at the time the directory was walked.
func (s *fsSource) Size() (int64, error) {
	return s.size, nil
}

// NewDirArchive exposes the file hierarchy of fsys as an [Archive] named
// name, e.g. NewDirArchive("app", os.DirFS("./app")). The hierarchy is
// walked on the first enumeration. Symlinks and other special files are
// skipped.
func NewDirArchive(name string, fsys fs.FS, opts ...ImportOption) Archive {
	cfg := newImportConfig(opts...)
	if cfg.name != "" {
		name = cfg.name
	}
	return &lazyArchive{
		name: name,
		walk: func() ([]Node, error) {
			return walkDir(context.Background(), fsys, cfg)
		},
	}
}

// walkDir converts the files of fsys into nodes in lexical order.
func walkDir(ctx context.Context, fsys fs.FS, cfg *importConfig) ([]Node, error) {
	b := newNodeBuilder(cfg)
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return b.directory(name)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return b.asset(ctx, name, &fsSource{fsys: fsys, name: name, size: info.Size()})
		default:
			cfg.logger.Debug("skip entry", "name", name, "type", d.Type().String())
			return nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk directory: %w", err)
	}
	return b.nodes, nil
}
