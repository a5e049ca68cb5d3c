// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

// Package export writes a virtual archive, a tree of directories, assets and
// nested archives, as an exploded directory tree, a zip container or a lazily
// computed tar stream.
//
// An export walks the archive exactly once. Nested archives are flattened into
// the namespace of their host at their mount point, and missing parent
// directories are created on the fly. Every entry is handed to a [Backend],
// which produces one output format. The tar backend is pull based: nothing is
// read before the caller reads the stream, and at most one asset is open at
// any time.
//
// Existing directories and archives (zip, jar, 7z, rar, tar and compressed tar)
// can be exposed as an [Archive] with [NewDirArchive] and [OpenArchive], while
// [MemoryArchive] assembles archives in memory.
//
// Configuration is done using the [Config], which is created with [NewConfig] and
// adjusted with options like [WithOverwrite] or [WithTarCompression]. Telemetry
// data is captured during every export and submitted to the [TelemetryHook].
package export
