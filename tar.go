// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// fileExtensionTar is the file extension for tar files
const fileExtensionTar = "tar"

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header matches the magic bytes for tar files
func isTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// TarBackend produces a tar stream that is computed while the caller reads
// it. Nothing is traversed before the first read, and at any time at most
// one asset is open.
type TarBackend struct {
	s *tarStream
}

// NewTarBackend returns a new streaming tar backend.
func NewTarBackend() *TarBackend {
	return &TarBackend{}
}

// Type implements [Backend].
func (b *TarBackend) Type() string {
	if b.s != nil && b.s.codec != "" {
		return fileExtensionTar + "." + b.s.codec
	}
	return fileExtensionTar
}

// Start prepares the stream. An unknown compression is reported as
// [ErrContainerWriteFailed].
func (b *TarBackend) Start(ctx context.Context, archive Archive, cfg *Config) error {
	s := &tarStream{
		cfg:     cfg,
		modTime: resolveModTime(cfg).Truncate(time.Second),
		codec:   cfg.TarCompression(),
	}

	var sink io.Writer = &s.buf
	if s.codec != "" {
		c, err := lookupCodec(s.codec)
		if err != nil {
			return newExportError(ErrContainerWriteFailed, RootPath, err)
		}
		comp, err := c.NewWriter(&s.buf)
		if err != nil {
			return newExportError(ErrContainerWriteFailed, RootPath, fmt.Errorf("cannot create %s writer: %w", s.codec, err))
		}
		s.comp = comp
		sink = comp
	}
	s.tw = tar.NewWriter(sink)

	switch cfg.TarLongNames() {
	case LongNamesGNU:
		s.format = tar.FormatGNU
	case LongNamesStrict:
		s.format = tar.FormatUSTAR
	default:
		s.format = tar.FormatUnknown
	}

	b.s = s
	return nil
}

// Open implements [LazyBackend]. The returned stream advances s while it
// is read, using ctx for all steps.
func (b *TarBackend) Open(ctx context.Context, s Stepper) (io.ReadCloser, error) {
	if b.s == nil {
		return nil, newExportError(ErrContainerWriteFailed, RootPath, fmt.Errorf("backend not started"))
	}
	b.s.ctx = ctx
	b.s.stepper = s
	return b.s, nil
}

// Directory queues the header of a directory entry.
func (b *TarBackend) Directory(ctx context.Context, p Path) error {
	b.s.entry = tarEntry{path: p, dir: true}
	b.s.state = stateHeader
	return nil
}

// Asset queues the header and the body of a file entry.
func (b *TarBackend) Asset(ctx context.Context, p Path, src AssetSource) error {
	b.s.entry = tarEntry{path: p, src: src}
	b.s.state = stateHeader
	return nil
}

// Finish queues the end of archive marker.
func (b *TarBackend) Finish(ctx context.Context) (*Result, error) {
	b.s.state = stateTrailer
	return &Result{Stream: b.s}, nil
}

// outputSize returns the number of bytes handed to the reader so far.
func (b *TarBackend) outputSize() int64 {
	if b.s == nil {
		return 0
	}
	return b.s.offset
}

// tarState is the position of a [tarStream] in the tar layout.
type tarState int

const (
	stateAwaitingEntry tarState = iota // next entry must be pulled from the traversal
	stateHeader                        // header of the current entry is due
	stateBody                          // body chunks of the current asset are due
	statePadding                       // block padding of the current asset is due
	stateTrailer                       // end of archive marker is due
	stateFinished
	stateFailed
	stateClosed
)

// tarEntry is the entry a [tarStream] is currently emitting.
type tarEntry struct {
	path Path
	dir  bool
	src  AssetSource
}

// tarStream is the reader returned by a tar export. Every step produces a
// bounded piece of output: one header, one body chunk, one padding run or
// the trailer. Output goes through the tar writer and the optional
// compressor into buf, which Read drains.
//
// A tarStream must not be used concurrently.
type tarStream struct {
	ctx     context.Context
	stepper Stepper
	cfg     *Config
	modTime time.Time
	format  tar.Format
	codec   string

	buf  bytes.Buffer
	comp io.WriteCloser
	tw   *tar.Writer

	state     tarState
	entry     tarEntry
	body      io.ReadCloser
	remaining int64
	offset    int64
	err       error
}

// Read implements io.Reader. It steps the state machine until output is
// available, the trailer was written, or a step failed.
func (s *tarStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		switch s.state {
		case stateClosed:
			return 0, fs.ErrClosed
		case stateFailed:
			return 0, s.err
		}
		return 0, nil
	}

	for {
		if s.buf.Len() > 0 {
			n, _ := s.buf.Read(p)
			s.offset += int64(n)
			return n, nil
		}

		switch s.state {
		case stateFinished:
			s.stepper.Close(nil)
			return 0, io.EOF
		case stateClosed:
			return 0, fs.ErrClosed
		case stateFailed:
			return 0, s.err
		}

		if err := s.step(); err != nil {
			s.fail(err)
			return 0, s.err
		}
	}
}

// step performs exactly one transition of the state machine.
func (s *tarStream) step() error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	switch s.state {
	case stateAwaitingEntry:
		// the backend callbacks move the state forward
		err := s.stepper.Step(s.ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err

	case stateHeader:
		if s.entry.dir {
			return s.writeDirHeader()
		}
		return s.writeFileHeader()

	case stateBody:
		return s.copyChunk()

	case statePadding:
		body := s.body
		s.body = nil
		if err := body.Close(); err != nil {
			return newExportError(ErrAssetUnreadable, s.entry.path, fmt.Errorf("cannot close source: %w", err))
		}
		if err := s.tw.Flush(); err != nil {
			return newExportError(ErrContainerWriteFailed, s.entry.path, err)
		}
		s.entry = tarEntry{}
		s.state = stateAwaitingEntry
		return nil

	case stateTrailer:
		if err := s.tw.Close(); err != nil {
			return newExportError(ErrContainerWriteFailed, RootPath, err)
		}
		if s.comp != nil {
			if err := s.comp.Close(); err != nil {
				return newExportError(ErrContainerWriteFailed, RootPath, fmt.Errorf("cannot close %s writer: %w", s.codec, err))
			}
		}
		s.state = stateFinished
		return nil
	}
	return fmt.Errorf("invalid stream state %d", s.state)
}

// header returns a header for the current entry with the fields shared by
// all entry types.
func (s *tarStream) header(name string, typeflag byte, mode fs.FileMode) *tar.Header {
	return &tar.Header{
		Typeflag: typeflag,
		Name:     name,
		Mode:     int64(mode.Perm()),
		ModTime:  s.modTime,
		Format:   s.format,
	}
}

// writeDirHeader writes the header of the current directory entry.
func (s *tarStream) writeDirHeader() error {
	hdr := s.header(s.entry.path.String()+"/", tar.TypeDir, s.cfg.CustomCreateDirMode())
	if err := s.tw.WriteHeader(hdr); err != nil {
		return newExportError(ErrContainerWriteFailed, s.entry.path, err)
	}
	s.entry = tarEntry{}
	s.state = stateAwaitingEntry
	return nil
}

// writeFileHeader determines the length of the current asset, opens it and
// writes its header.
func (s *tarStream) writeFileHeader() error {
	p := s.entry.path

	sizer, ok := s.entry.src.(AssetSizer)
	if !ok {
		return newExportError(ErrContainerWriteFailed, p, fmt.Errorf("content length unknown"))
	}
	size, err := sizer.Size()
	if err != nil {
		return err
	}

	rc, err := s.entry.src.Open()
	if err != nil {
		return err
	}

	hdr := s.header(p.String(), tar.TypeReg, s.cfg.CustomFileMode())
	hdr.Size = size
	if err := s.tw.WriteHeader(hdr); err != nil {
		rc.Close()
		return newExportError(ErrContainerWriteFailed, p, err)
	}

	s.body = rc
	s.remaining = size
	s.state = stateBody
	return nil
}

// copyChunk copies at most one chunk of the current asset into the tar
// writer. After the last chunk the source must be exhausted.
func (s *tarStream) copyChunk() error {
	p := s.entry.path

	if s.remaining > 0 {
		n := int64(s.cfg.ChunkSize())
		if n > s.remaining {
			n = s.remaining
		}
		written, err := io.CopyN(s.tw, s.body, n)
		s.remaining -= written
		if errors.Is(err, io.EOF) {
			return newExportError(ErrContainerWriteFailed, p, fmt.Errorf("content shorter than announced, %d bytes missing", s.remaining))
		}
		if err != nil {
			var ee *ExportError
			if errors.As(err, &ee) {
				return err
			}
			return newExportError(ErrContainerWriteFailed, p, err)
		}
		if s.remaining > 0 {
			return nil
		}
	}

	// the announced length must match the content
	var probe [1]byte
	n, err := s.body.Read(probe[:])
	if n > 0 {
		return newExportError(ErrContainerWriteFailed, p, fmt.Errorf("content longer than announced"))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	s.state = statePadding
	return nil
}

// fail moves the stream into the failed state, releases the open asset and
// ends the export.
func (s *tarStream) fail(err error) {
	s.release()
	s.buf.Reset()
	s.err = &StreamError{Offset: s.offset, Err: err}
	s.state = stateFailed
	s.stepper.Close(err)
}

// release closes the open asset and the compressor.
func (s *tarStream) release() {
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
	if s.comp != nil && s.state != stateFinished {
		s.comp.Close()
	}
	s.comp = nil
}

// Close releases all resources of the stream. Closing before the end of
// the stream abandons the export. Closing twice is a no-op.
func (s *tarStream) Close() error {
	switch s.state {
	case stateClosed:
		return nil
	case stateFailed:
	case stateFinished:
		s.stepper.Close(nil)
	default:
		s.release()
		s.cfg.Logger().Debug("stream closed before end", "offset", s.offset)
		s.stepper.Close(nil)
	}
	s.buf.Reset()
	s.entry = tarEntry{}
	s.state = stateClosed
	return nil
}
