// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	export "github.com/hashicorp/go-export"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parse parses args into a new CLI.
func parse(t *testing.T, args ...string) *CLI {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{
		"version":      "goexport (test)",
		"compressions": fmt.Sprint(export.Compressions()),
	})
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cli
}

// testSource creates a source directory named app.
func testSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "static"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte("<html/>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "static", "app.js"), []byte("run()"), 0644))
	return src
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseDefaults(t *testing.T) {
	cli := parse(t, "src")
	assert.Equal(t, ".", cli.Destination)
	assert.Equal(t, []string{"dir"}, cli.Format)
	assert.Equal(t, "pax", cli.LongNames)
	assert.Equal(t, "deflate", cli.ZipMethod)
	assert.Equal(t, int64(-1), cli.MaxFiles)
	assert.False(t, cli.Nested)
}

func TestParsePositionals(t *testing.T) {
	src := t.TempDir()
	cli := parse(t, src, "out")
	assert.Equal(t, src, cli.Source)
	assert.Equal(t, "out", cli.Destination)

	var only CLI
	parser, err := kong.New(&only, kong.Vars{"version": "test", "compressions": ""})
	require.NoError(t, err)
	_, err = parser.Parse(nil)
	assert.Error(t, err, "source is required")
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test", "compressions": ""})
	require.NoError(t, err)
	_, err = parser.Parse([]string{"-f", "rpm", "src"})
	assert.Error(t, err)
}

func TestExecuteExploded(t *testing.T) {
	src := testSource(t)
	dst := t.TempDir()

	cli := parse(t, src, dst)
	require.NoError(t, Execute(context.Background(), cli, testLogger, io.Discard))

	data, err := os.ReadFile(filepath.Join(dst, "app", "static", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "run()", string(data))
}

func TestExecuteSeveralFormats(t *testing.T) {
	src := testSource(t)
	dst := t.TempDir()

	cli := parse(t, "-f", "zip", "-f", "tar", "-z", "gz", "-n", "site", src, dst)
	require.NoError(t, Execute(context.Background(), cli, testLogger, io.Discard))

	zr, err := zip.OpenReader(filepath.Join(dst, "site.zip"))
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"index.html", "static/", "static/app.js"}, names)

	stat, err := os.Stat(filepath.Join(dst, "site.tar.gz"))
	require.NoError(t, err)
	assert.True(t, stat.Size() > 0)

	// existing outputs are kept without overwrite
	err = Execute(context.Background(), parse(t, "-f", "tar", "-n", "site", "-z", "gz", src, dst), testLogger, io.Discard)
	assert.Error(t, err)
	require.NoError(t, Execute(context.Background(), parse(t, "-O", "-f", "tar", "-n", "site", "-z", "gz", src, dst), testLogger, io.Discard))
}

func TestExecuteTarToStdout(t *testing.T) {
	src := testSource(t)

	var stdout bytes.Buffer
	cli := parse(t, "-f", "tar", src, "-")
	require.NoError(t, Execute(context.Background(), cli, testLogger, &stdout))

	var names []string
	tr := tar.NewReader(&stdout)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	assert.Equal(t, []string{"index.html", "static/", "static/app.js"}, names)
}

func TestExecuteStdoutNeedsSingleTar(t *testing.T) {
	src := testSource(t)

	err := Execute(context.Background(), parse(t, "-f", "zip", src, "-"), testLogger, io.Discard)
	assert.Error(t, err)

	err = Execute(context.Background(), parse(t, "-f", "tar", "-f", "tar", src, "-"), testLogger, io.Discard)
	assert.Error(t, err)
}

func TestExecuteArchiveSource(t *testing.T) {
	dir := t.TempDir()
	inputDir := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(inputDir, 0755))

	// pack the nested archive as a real jar first
	jar := export.NewMemoryArchive("lib.jar")
	require.NoError(t, jar.AddBytes("lib.txt", []byte("lib")))
	jarPath, err := export.ExportZip(context.Background(), jar, filepath.Join(dir, "lib.jar"))
	require.NoError(t, err)
	jarData, err := os.ReadFile(jarPath)
	require.NoError(t, err)

	app := export.NewMemoryArchive("app.zip")
	require.NoError(t, app.AddBytes("lib/lib.jar", jarData))
	src, err := export.ExportZip(context.Background(), app, filepath.Join(inputDir, "app.zip"))
	require.NoError(t, err)

	dst := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dst, 0755))
	require.NoError(t, Execute(context.Background(), parse(t, "-N", src, dst), testLogger, io.Discard))

	data, err := os.ReadFile(filepath.Join(dst, "app.zip", "lib", "lib.jar", "lib.txt"))
	require.NoError(t, err)
	assert.Equal(t, "lib", string(data))
}

func TestExecuteMissingSource(t *testing.T) {
	err := Execute(context.Background(), parse(t, filepath.Join(t.TempDir(), "missing")), testLogger, io.Discard)
	assert.Error(t, err)
}
