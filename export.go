// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

//go:generate mockgen -destination mock_backend_test.go -package export_test . Backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// now is a function point that returns time.Now to the caller.
var now = time.Now

// Backend consumes the entries of an export and produces the output of one
// format. The engine calls Start once, then Directory and Asset for every
// flattened entry in traversal order, and Finish once the traversal is
// exhausted.
type Backend interface {
	// Type returns the name of the produced format, e.g. "zip".
	Type() string

	// Start checks the preconditions of the backend before any traversal
	// happens. Violations are reported as [ErrInvalidTargetLocation].
	Start(ctx context.Context, archive Archive, cfg *Config) error

	// Directory is called for every directory entry, ancestors first.
	Directory(ctx context.Context, p Path) error

	// Asset is called for every content bearing entry. The backend opens src
	// itself, when and as often as it needs to, and closes what it opened.
	Asset(ctx context.Context, p Path, src AssetSource) error

	// Finish completes the output after the last entry.
	Finish(ctx context.Context) (*Result, error)
}

// LazyBackend is a [Backend] whose output is pulled by the caller. Instead of
// being driven to completion by [Export], it receives a [Stepper] and
// advances the traversal on demand.
type LazyBackend interface {
	Backend

	// Open returns the stream of the export. No entry must be processed
	// before the first read.
	Open(ctx context.Context, s Stepper) (io.ReadCloser, error)
}

// outputSizer is implemented by backends that know the number of bytes
// they produced.
type outputSizer interface {
	outputSize() int64
}

// aborter is implemented by backends that clean up partial output when an
// export fails.
type aborter interface {
	abort()
}

// Stepper advances an export by exactly one entry per call to Step. Once the
// traversal is exhausted, Step calls the backend's Finish and returns
// io.EOF. Close must be called exactly once when the export ends for any
// reason; err is the reason or nil.
type Stepper interface {
	Step(ctx context.Context) error
	Close(err error)
}

// Result is the output of an export. Eager backends fill Path, the
// streaming backend fills Stream, which the caller must close.
type Result struct {
	Path   string
	Stream io.ReadCloser
}

// Format selects one of the built-in backends.
type Format int

const (
	// FormatExploded writes a directory tree.
	FormatExploded Format = iota + 1

	// FormatZip writes a zip container.
	FormatZip

	// FormatTar returns a lazily computed tar stream.
	FormatTar
)

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatExploded:
		return "dir"
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	}
	return "unknown"
}

// ParseFormat parses the name of a format as returned by [Format.String].
func ParseFormat(name string) (Format, error) {
	for _, f := range []Format{FormatExploded, FormatZip, FormatTar} {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown format %q", name)
}

// NewBackend returns a new instance of the built-in backend for f.
func NewBackend(f Format) (Backend, error) {
	switch f {
	case FormatExploded:
		return NewExplodedBackend(NewTargetDisk()), nil
	case FormatZip:
		return NewZipBackend(), nil
	case FormatTar:
		return NewTarBackend(), nil
	}
	return nil, fmt.Errorf("unknown format %d", f)
}

// ExportFormat exports archive with the built-in backend for f.
func ExportFormat(ctx context.Context, archive Archive, f Format, cfg *Config) (*Result, error) {
	b, err := NewBackend(f)
	if err != nil {
		return nil, err
	}
	return Export(ctx, archive, b, cfg)
}

// ExportExploded writes archive as a directory tree below dst and returns
// the directory that holds it, which is dst joined with the archive name.
func ExportExploded(ctx context.Context, archive Archive, dst string, opts ...ConfigOption) (string, error) {
	cfg := NewConfig(append(opts[:len(opts):len(opts)], WithTargetLocation(dst))...)
	res, err := Export(ctx, archive, NewExplodedBackend(NewTargetDisk()), cfg)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// ExportZip writes archive as a zip container to dst and returns the path
// of the written file.
func ExportZip(ctx context.Context, archive Archive, dst string, opts ...ConfigOption) (string, error) {
	cfg := NewConfig(append(opts[:len(opts):len(opts)], WithTargetLocation(dst))...)
	res, err := Export(ctx, archive, NewZipBackend(), cfg)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// ExportTar returns archive as a lazily computed tar stream. The caller must
// close the stream.
func ExportTar(ctx context.Context, archive Archive, opts ...ConfigOption) (io.ReadCloser, error) {
	res, err := Export(ctx, archive, NewTarBackend(), NewConfig(opts...))
	if err != nil {
		return nil, err
	}
	return res.Stream, nil
}

// Export walks archive exactly once, flattening nested archives in place,
// and hands every entry to b.
//
// Errors returned by Export itself mean that nothing was emitted by a lazy
// backend. Side effects of eager backends that already happened are not
// rolled back.
func Export(ctx context.Context, archive Archive, b Backend, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if archive == nil {
		return nil, newExportError(ErrInvalidPath, RootPath, fmt.Errorf("nil archive"))
	}

	d := &dispatcher{
		backend: b,
		cfg:     cfg,
		start:   now(),
		td:      &TelemetryData{ExportType: b.Type()},
	}
	cfg.Logger().Info("export", "archive", archive.Name(), "type", b.Type())

	if err := b.Start(ctx, archive, cfg); err != nil {
		d.Close(err)
		return nil, err
	}
	// the type may depend on the configuration applied by Start
	d.td.ExportType = b.Type()

	tr, err := newTraversal(archive)
	if err != nil {
		d.Close(err)
		return nil, err
	}
	d.tr = tr

	if lb, ok := b.(LazyBackend); ok {
		rc, err := lb.Open(ctx, d)
		if err != nil {
			d.Close(err)
			return nil, err
		}
		return &Result{Stream: rc}, nil
	}

	for {
		err := d.Step(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.Close(err)
			return nil, err
		}
	}
	d.Close(nil)
	return d.result, nil
}

// dispatcher connects a traversal with a backend. It is the [Stepper]
// handed to lazy backends.
type dispatcher struct {
	backend Backend
	cfg     *Config
	tr      *traversal
	td      *TelemetryData
	start   time.Time
	entries int64
	size    int64
	result  *Result
	done    bool
	closed  bool
}

// Step implements [Stepper].
func (d *dispatcher) Step(ctx context.Context) error {
	if d.closed {
		return fmt.Errorf("export already closed")
	}
	if d.done {
		return io.EOF
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	e, err := d.tr.next()
	if errors.Is(err, io.EOF) {
		res, err := d.backend.Finish(ctx)
		if err != nil {
			return err
		}
		d.result = res
		d.done = true
		return io.EOF
	}
	if err != nil {
		return err
	}

	d.entries++
	if err := d.cfg.CheckMaxFiles(d.entries); err != nil {
		return newExportError(err, e.Path, fmt.Errorf("limit %d", d.cfg.MaxFiles()))
	}

	switch e.Kind {
	case EntryDirectory:
		d.cfg.Logger().Debug("directory", "path", e.Path.String())
		if err := d.backend.Directory(ctx, e.Path); err != nil {
			return err
		}
		d.td.ExportedDirs++
	case EntryAsset:
		d.cfg.Logger().Debug("asset", "path", e.Path.String())
		if err := d.backend.Asset(ctx, e.Path, &engineSource{path: e.Path, src: e.Source, d: d}); err != nil {
			return err
		}
		d.td.ExportedFiles++
	}
	return nil
}

// Close implements [Stepper]. It releases the traversal and submits the
// telemetry data exactly once.
func (d *dispatcher) Close(err error) {
	if d.closed {
		return
	}
	d.closed = true
	if a, ok := d.backend.(aborter); ok && err != nil {
		a.abort()
	}
	if d.tr != nil {
		d.td.NestedArchives = d.tr.nested
		d.tr.close()
	}
	d.td.ExportSize = d.size
	if os, ok := d.backend.(outputSizer); ok {
		d.td.OutputSize = os.outputSize()
	}
	captureError(d.td, err)
	captureExportDuration(d.td, d.start)
	if err != nil {
		d.cfg.Logger().Error("export failed", "err", err)
	}
	d.cfg.TelemetryHook()(context.Background(), d.td)
}

// engineSource wraps the source of an entry. Open failures are reported as
// [ErrAssetUnreadable] and read bytes count towards the export size.
type engineSource struct {
	path Path
	src  AssetSource
	d    *dispatcher
}

// Open opens the underlying source.
func (s *engineSource) Open() (io.ReadCloser, error) {
	rc, err := s.src.Open()
	if err != nil {
		return nil, newExportError(ErrAssetUnreadable, s.path, err)
	}
	return &assetReader{rc: rc, s: s}, nil
}

// Size returns the content length. Sources that do not implement
// [AssetSizer] are opened and read once to measure them.
func (s *engineSource) Size() (int64, error) {
	if sizer, ok := s.src.(AssetSizer); ok {
		n, err := sizer.Size()
		if err != nil {
			return 0, newExportError(ErrAssetUnreadable, s.path, err)
		}
		return n, nil
	}

	rc, err := s.src.Open()
	if err != nil {
		return 0, newExportError(ErrAssetUnreadable, s.path, err)
	}
	defer rc.Close()
	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return 0, newExportError(ErrAssetUnreadable, s.path, fmt.Errorf("cannot measure content: %w", err))
	}
	return n, nil
}

// assetReader counts the bytes read from an asset.
type assetReader struct {
	rc io.ReadCloser
	s  *engineSource
}

// Read reads from the underlying source and enforces the maximum export size.
func (r *assetReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.s.d.size += int64(n)
	if lerr := r.s.d.cfg.CheckExportSize(r.s.d.size); lerr != nil {
		return n, newExportError(lerr, r.s.path, fmt.Errorf("limit %d", r.s.d.cfg.MaxExportSize()))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, newExportError(ErrAssetUnreadable, r.s.path, err)
	}
	return n, err
}

// Close closes the underlying source.
func (r *assetReader) Close() error {
	return r.rc.Close()
}
