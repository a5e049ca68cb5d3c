// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"

	export "github.com/hashicorp/go-export"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRarArchiveBase64 holds dir/foo, file, a symlink named link and dir.
var testRarArchiveBase64 = "UmFyIRoHAQAzkrXlCgEFBgAFAQGAgAADk1YoJQIDC50ABJ0ApIMClAgA9IAAAQdkaXIvZm9vCgMTQPjXZsjBSQhNaSAgNCBTZXAgMjAyNCAwODowMzo0NCBDRVNUCpQdu+oiAgMLnQAEnQCkgwI+z7uqgAABBGZpbGUKAxPEDddmxHsQDkRpICAzIFNlcCAyMDI0IDE1OjIzOjE2IENFU1QKe1xvKCwCAxcABAftwwIAAAAAgAABBGxpbmsKAxNM+NdmSCZHGAsFAQAHZGlyL2Zvb0A2hh0bAgMLAAEA7YMBgAABA2RpcgoDE0D412Z533kHHXdWUQMFBAA="

// test7zipArchiveHex holds test/data with "Hello World!".
const test7zipArchiveHex = "377abcaf271c00049af18e7973000000000000002000000000000000a7e80f9801000b48656c6c6f20576f726c6421000000813307ae0fcef2b20c07c8437f41b1fafddb88b6d7636b8bd58a0e24a2f717a5f156e37f41fd00833298421d5d088c0cf987b30c0473663599e4d2f21cb69620038f10458109662135c3024189f42799abe3227b174a853e824f808b2efaab000017061001096300070b01000123030101055d001000000c760a015bcfa0a70000"

// tarContent exports a as tar and returns the entry names and file contents.
func tarContent(t *testing.T, a export.Archive) ([]string, map[string]string) {
	t.Helper()
	stream, err := export.ExportTar(context.Background(), a)
	require.NoError(t, err)
	defer stream.Close()
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	headers, content := readTar(t, data)
	return headerNames(headers), content
}

// writeTestFile writes data into a file in a temporary directory.
func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestNewDirArchive(t *testing.T) {
	fsys := fstest.MapFS{
		"a.txt":     {Data: []byte("a")},
		"dir/b.txt": {Data: []byte("b")},
		"dir/empty": {Mode: fs.ModeDir | 0755},
	}

	a := export.NewDirArchive("app", fsys)
	assert.Equal(t, "app", a.Name())

	names, content := tarContent(t, a)
	assert.Equal(t, []string{"a.txt", "dir/", "dir/b.txt", "dir/empty/"}, names)
	assert.Equal(t, map[string]string{"a.txt": "a", "dir/b.txt": "b"}, content)

	renamed := export.NewDirArchive("app", fsys, export.WithArchiveName("other"))
	assert.Equal(t, "other", renamed.Name())
}

func TestNewDirArchiveSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0644))
	require.NoError(t, os.Symlink("file", filepath.Join(dir, "link")))

	names, _ := tarContent(t, export.NewDirArchive("app", os.DirFS(dir)))
	assert.Equal(t, []string{"file"}, names)
}

func TestOpenArchiveZip(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "app.zip")
	_, err := export.ExportZip(context.Background(), exampleArchive(t), dst)
	require.NoError(t, err)

	a, err := export.OpenArchive(context.Background(), dst)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "zip", a.Format())
	assert.Equal(t, "app.zip", a.Name())

	names, content := tarContent(t, a)
	assert.Equal(t, []string{"a.txt", "inner.jar/", "inner.jar/b.txt"}, names)
	assert.Equal(t, map[string]string{"a.txt": "hello", "inner.jar/b.txt": "world"}, content)
}

func TestOpenArchiveNested(t *testing.T) {
	inner := export.NewMemoryArchive("inner.jar")
	require.NoError(t, inner.AddBytes("META-INF/MANIFEST.MF", []byte("Manifest-Version: 1.0\n")))
	innerZip := filepath.Join(t.TempDir(), "inner.jar")
	_, err := export.ExportZip(context.Background(), inner, innerZip, export.WithZipMethod(export.ZipZstd))
	require.NoError(t, err)
	jar, err := os.ReadFile(innerZip)
	require.NoError(t, err)

	root := export.NewMemoryArchive("app")
	require.NoError(t, root.AddBytes("index.html", []byte("<html/>")))
	require.NoError(t, root.AddBytes("WEB-INF/lib/inner.jar", jar))
	stream, err := export.ExportTar(context.Background(), root, export.WithTarCompression("gz"))
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	path := writeTestFile(t, "app.tar.gz", data)

	t.Run("flattened", func(t *testing.T) {
		a, err := export.OpenArchive(context.Background(), path, export.WithNestedArchives(true))
		require.NoError(t, err)
		defer a.Close()
		assert.Equal(t, "tar.gz", a.Format())

		var td *export.TelemetryData
		hook := func(ctx context.Context, d *export.TelemetryData) { td = d }
		tm := export.NewTargetMemory()
		cfg := export.NewConfig(export.WithTargetLocation("."), export.WithTelemetryHook(hook))
		_, err = export.Export(context.Background(), a, export.NewExplodedBackend(tm), cfg)
		require.NoError(t, err)

		manifest, err := tm.ReadFile("app.tar.gz/WEB-INF/lib/inner.jar/META-INF/MANIFEST.MF")
		require.NoError(t, err)
		assert.Equal(t, "Manifest-Version: 1.0\n", string(manifest))
		require.NotNil(t, td)
		assert.Equal(t, int64(1), td.NestedArchives)
	})

	t.Run("kept as asset", func(t *testing.T) {
		a, err := export.OpenArchive(context.Background(), path)
		require.NoError(t, err)
		defer a.Close()

		_, content := tarContent(t, a)
		assert.Equal(t, string(jar), content["WEB-INF/lib/inner.jar"])
	})
}

func TestOpenArchiveCompressedFile(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	cases := []struct {
		name string
		want string
	}{
		{name: "greeting.txt.gz", want: "greeting.txt"},
		{name: "greeting", want: "data"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := export.OpenArchive(context.Background(), writeTestFile(t, tc.name, buf.Bytes()))
			require.NoError(t, err)
			defer a.Close()
			assert.Equal(t, "gz", a.Format())

			names, content := tarContent(t, a)
			assert.Equal(t, []string{tc.want}, names)
			assert.Equal(t, "hello", content[tc.want])
		})
	}
}

func TestOpenArchiveRar(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(testRarArchiveBase64)
	require.NoError(t, err)

	a, err := export.OpenArchive(context.Background(), writeTestFile(t, "test.rar", data))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "rar", a.Format())

	names, content := tarContent(t, a)
	assert.ElementsMatch(t, []string{"dir/", "dir/foo", "file"}, names)
	assert.Equal(t, "Mi  4 Sep 2024 08:03:44 CEST\n", content["dir/foo"])
	assert.Equal(t, "Di  3 Sep 2024 15:23:16 CEST\n", content["file"])
}

func TestOpenArchive7zip(t *testing.T) {
	data, err := hex.DecodeString(test7zipArchiveHex)
	require.NoError(t, err)

	a, err := export.OpenArchive(context.Background(), writeTestFile(t, "test.7z", data))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "7z", a.Format())

	_, content := tarContent(t, a)
	assert.Equal(t, map[string]string{"test/data": "Hello World!"}, content)
}

func TestOpenArchiveMaxEntrySize(t *testing.T) {
	root := export.NewMemoryArchive("app")
	require.NoError(t, root.AddBytes("big.bin", bytes.Repeat([]byte("x"), 2048)))
	stream, err := export.ExportTar(context.Background(), root)
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	path := writeTestFile(t, "app.tar", data)

	a, err := export.OpenArchive(context.Background(), path, export.WithMaxEntrySize(1024))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Nodes()
	assert.Error(t, err)

	b, err := export.OpenArchive(context.Background(), path, export.WithMaxEntrySize(2048))
	require.NoError(t, err)
	defer b.Close()

	nodes, err := b.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "big.bin", nodes[0].Path.String())
}

func TestOpenArchiveUnsupported(t *testing.T) {
	_, err := export.OpenArchive(context.Background(), writeTestFile(t, "plain.txt", []byte("just some text")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, export.ErrUnsupportedArchive))

	_, err = export.OpenArchive(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, export.ErrUnsupportedArchive))

	_, err = export.OpenArchive(context.Background(), filepath.Join(t.TempDir(), "missing.zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
