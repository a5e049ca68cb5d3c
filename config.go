// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"time"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// ZipMethod is the compression method used for assets in zip exports.
type ZipMethod uint16

const (
	// ZipStore stores assets uncompressed.
	ZipStore ZipMethod = 0

	// ZipDeflate compresses assets with deflate.
	ZipDeflate ZipMethod = 8

	// ZipZstd compresses assets with zstandard (method 93).
	ZipZstd ZipMethod = 93
)

// String returns the name of the method.
func (m ZipMethod) String() string {
	switch m {
	case ZipStore:
		return "store"
	case ZipDeflate:
		return "deflate"
	case ZipZstd:
		return "zstd"
	}
	return "unknown"
}

// LongNames is the policy for tar entry names that do not fit into a
// USTAR header (100 bytes name plus 155 bytes prefix).
type LongNames int

const (
	// LongNamesPAX escapes long names into a PAX extended header.
	LongNamesPAX LongNames = iota

	// LongNamesGNU writes GNU long name records for every entry.
	LongNamesGNU

	// LongNamesStrict refuses names that do not fit into USTAR.
	LongNamesStrict
)

// Config holds all options of an export. It is created with [NewConfig] and
// adjusted using the option pattern.
type Config struct {
	// cacheInMemory builds zip containers in memory instead of a temporary file
	cacheInMemory bool

	// chunkSize is the maximum number of body bytes a tar stream step copies
	chunkSize int

	// customCreateDirMode is the file mode for created directories (respecting umask)
	customCreateDirMode fs.FileMode

	// customFileMode is the file mode for exported files (respecting umask)
	customFileMode fs.FileMode

	// logger stream for the export
	logger logger

	// maxExportSize is the maximum number of asset bytes written.
	// Set value to -1 to disable the check.
	maxExportSize int64

	// maxFiles is the maximum number of entries (directories and files).
	// Set value to -1 to disable the check.
	maxFiles int64

	// modTime is stamped on every entry, zero means time of export
	modTime time.Time

	// overwrite decides if existing files in the destination are replaced
	overwrite bool

	// tarCompression is the file extension of the codec wrapping tar streams
	tarCompression string

	// tarLongNames is the overflow policy for long tar entry names
	tarLongNames LongNames

	// targetLocation is the output directory or file of eager backends
	targetLocation string

	// telemetryHook is a function to consume telemetry data after a finished export
	// Important: do not adjust this value after the export started
	telemetryHook TelemetryHook

	// zipMethod is the compression method for zip assets
	zipMethod ZipMethod
}

// CacheInMemory returns true if zip containers are built in memory.
//
// If set to false, the container is built in a temporary file next to the
// destination to avoid memory exhaustion.
func (c *Config) CacheInMemory() bool {
	return c.cacheInMemory
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {

	// check if disabled
	if c.MaxFiles() == -1 {
		return nil
	}

	// check value
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExportSize checks if size exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxExportSizeExceeded] error is returned.
func (c *Config) CheckExportSize(size int64) error {

	// check if disabled
	if c.MaxExportSize() == -1 {
		return nil
	}

	// check value
	if size > c.MaxExportSize() {
		return ErrMaxExportSizeExceeded
	}
	return nil
}

// ChunkSize returns the maximum number of body bytes copied per stream step.
func (c *Config) ChunkSize() int {
	return c.chunkSize
}

// CustomCreateDirMode returns the file mode for created directories. (respecting umask)
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomFileMode returns the file mode for exported files. (respecting umask)
func (c *Config) CustomFileMode() fs.FileMode {
	return c.customFileMode
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExportSize returns the maximum number of asset bytes an export may write.
func (c *Config) MaxExportSize() int64 {
	return c.maxExportSize
}

// MaxFiles returns the maximum number of exported entries.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// ModTime returns the modification time stamped on entries. A zero value
// means the time the export started.
func (c *Config) ModTime() time.Time {
	return c.modTime
}

// resolveModTime returns the configured modification time or, if unset,
// the current time truncated to seconds.
func resolveModTime(c *Config) time.Time {
	if c.modTime.IsZero() {
		return now().Truncate(time.Second)
	}
	return c.modTime
}

// Overwrite returns true if existing files in the destination are replaced.
func (c *Config) Overwrite() bool {
	return c.overwrite
}

// TarCompression returns the file extension of the codec that wraps tar
// streams, or "" for plain tar.
func (c *Config) TarCompression() string {
	return c.tarCompression
}

// TarLongNames returns the policy for names that do not fit into USTAR.
func (c *Config) TarLongNames() LongNames {
	return c.tarLongNames
}

// TargetLocation returns the output directory or file of eager backends.
func (c *Config) TargetLocation() string {
	return c.targetLocation
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return func(ctx context.Context, d *TelemetryData) {
			// noop
		}
	}
	return c.telemetryHook
}

// ZipMethod returns the compression method for zip assets.
func (c *Config) ZipMethod() ZipMethod {
	return c.zipMethod
}

const (
	defaultCacheInMemory       = false        // build on disk
	defaultChunkSize           = 32 * 1024    // 32 KiB per stream step
	defaultCustomCreateDirMode = 0755         // rwxr-xr-x
	defaultCustomFileMode      = 0644         // rw-r--r--
	defaultMaxExportSize       = -1           // no limit
	defaultMaxFiles            = -1           // no limit
	defaultOverwrite           = false        // don't overwrite existing files
	defaultTarCompression      = ""           // plain tar
	defaultTarLongNames        = LongNamesPAX // extended headers for long names
	defaultZipMethod           = ZipDeflate   // deflate zip assets
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		cacheInMemory:       defaultCacheInMemory,
		chunkSize:           defaultChunkSize,
		customCreateDirMode: defaultCustomCreateDirMode,
		customFileMode:      defaultCustomFileMode,
		logger:              defaultLogger,
		maxExportSize:       defaultMaxExportSize,
		maxFiles:            defaultMaxFiles,
		overwrite:           defaultOverwrite,
		tarCompression:      defaultTarCompression,
		tarLongNames:        defaultTarLongNames,
		telemetryHook:       defaultTelemetryHook,
		zipMethod:           defaultZipMethod,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCacheInMemory options pattern function to build zip containers in memory.
//
// If set to false, the container is built in a temporary file to avoid memory exhaustion.
func WithCacheInMemory(cache bool) ConfigOption {
	return func(c *Config) {
		c.cacheInMemory = cache
	}
}

// WithChunkSize options pattern function to set the number of body bytes a tar stream
// copies per step. Values below 1 are ignored.
func WithChunkSize(size int) ConfigOption {
	return func(c *Config) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for created directories. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomFileMode options pattern function to set the file mode for exported
// files. (respecting umask)
func WithCustomFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customFileMode = mode
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExportSize options pattern function to set the maximum number of asset
// bytes written by an export. (-1 to disable check)
func WithMaxExportSize(maxExportSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExportSize = maxExportSize
	}
}

// WithMaxFiles options pattern function to set the maximum number of exported
// directories and files. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithModTime options pattern function to stamp every entry with t, which
// makes exports reproducible.
func WithModTime(t time.Time) ConfigOption {
	return func(c *Config) {
		c.modTime = t
	}
}

// WithOverwrite options pattern function specify if files should be overwritten in the destination.
func WithOverwrite(enable bool) ConfigOption {
	return func(c *Config) {
		c.overwrite = enable
	}
}

// WithTarCompression options pattern function to wrap tar streams in a codec,
// identified by its file extension ("gz", "zst", "lz4", "xz", "br", "bz2", "sz", "zz").
func WithTarCompression(ext string) ConfigOption {
	return func(c *Config) {
		c.tarCompression = ext
	}
}

// WithTarLongNames options pattern function to set the policy for names that
// do not fit into a USTAR header.
func WithTarLongNames(policy LongNames) ConfigOption {
	return func(c *Config) {
		c.tarLongNames = policy
	}
}

// WithTargetLocation options pattern function to set the output directory or file
// of eager backends.
func WithTargetLocation(dst string) ConfigOption {
	return func(c *Config) {
		c.targetLocation = dst
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after the export.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}

// WithZipMethod options pattern function to set the compression method for zip assets.
func WithZipMethod(method ZipMethod) ConfigOption {
	return func(c *Config) {
		c.zipMethod = method
	}
}
