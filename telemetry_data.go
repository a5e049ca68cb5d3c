// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"context"
	"encoding/json"
	"time"
)

// TelemetryData holds all telemetry data of an export.
type TelemetryData struct {
	// ExportedDirs is the number of exported directories
	ExportedDirs int64 `json:"exported_dirs"`

	// ExportDuration is the time it took to export the archive. For streams it
	// covers the time until the stream finished or was closed.
	ExportDuration time.Duration `json:"export_duration"`

	// ExportErrors is the number of errors during the export
	ExportErrors int64 `json:"export_errors"`

	// ExportedFiles is the number of exported files
	ExportedFiles int64 `json:"exported_files"`

	// ExportSize is the number of asset bytes exported
	ExportSize int64 `json:"export_size"`

	// ExportType is the output format, e.g. "tar.gz"
	ExportType string `json:"export_type"`

	// LastExportError is the last error during the export
	LastExportError error `json:"last_export_error"`

	// NestedArchives is the number of flattened nested archives
	NestedArchives int64 `json:"nested_archives"`

	// OutputSize is the number of bytes of the produced container, if known
	OutputSize int64 `json:"output_size"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastExportError != nil {
		lastError = m.LastExportError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastExportError string `json:"last_export_error"`
		*Alias
	}{
		LastExportError: lastError,
		Alias:           (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after an export has finished which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// captureExportDuration captures the duration of the export
func captureExportDuration(td *TelemetryData, start time.Time) {
	td.ExportDuration = now().Sub(start)
}

// captureError counts err and remembers it as the last error
func captureError(td *TelemetryData, err error) {
	if err == nil {
		return
	}
	td.ExportErrors++
	td.LastExportError = err
}
