// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
)

// walkTar returns the nodes of the tar archive in src, decompressing it
// with the codec for ext first, if set. Tar archives are read sequentially,
// so entry content is buffered.
func walkTar(ctx context.Context, src io.Reader, ext string, cfg *importConfig) ([]Node, error) {
	if ext != "" {
		c, err := lookupCodec(ext)
		if err != nil {
			return nil, err
		}
		dr, err := c.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("cannot create %s reader: %w", ext, err)
		}
		defer dr.Close()
		src = dr
	}
	return walkArchive(ctx, &tarWalker{tr: tar.NewReader(src)}, true, cfg)
}

// tarWalker is a walker for tar files
type tarWalker struct {
	tr *tar.Reader
}

// Type returns the file extension for tar files
func (t *tarWalker) Type() string {
	return fileExtensionTar
}

// Next returns the next entry in the tar file
func (t *tarWalker) Next() (archiveEntry, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		return nil, err
	}
	return &tarFileEntry{hdr, t.tr}, nil
}

// tarFileEntry is an entry in a tar file
type tarFileEntry struct {
	hdr *tar.Header
	r   io.Reader
}

// Name returns the name of the entry
func (t *tarFileEntry) Name() string {
	return t.hdr.Name
}

// Size returns the size of the entry
func (t *tarFileEntry) Size() int64 {
	return t.hdr.Size
}

// IsRegular returns true if the entry is a regular file
func (t *tarFileEntry) IsRegular() bool {
	return t.hdr.Typeflag == tar.TypeReg
}

// IsDir returns true if the entry is a directory
func (t *tarFileEntry) IsDir() bool {
	return t.hdr.Typeflag == tar.TypeDir
}

// Open returns a reader for the entry. It is only valid until the walker
// moves to the next entry.
func (t *tarFileEntry) Open() (io.ReadCloser, error) {
	return io.NopCloser(t.r), nil
}
