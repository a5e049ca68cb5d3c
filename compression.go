// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

const (
	fileExtensionBrotli = "br"
	fileExtensionBzip2  = "bz2"
	fileExtensionGZip   = "gz"
	fileExtensionLZ4    = "lz4"
	fileExtensionSnappy = "sz"
	fileExtensionXz     = "xz"
	fileExtensionZlib   = "zz"
	fileExtensionZstd   = "zst"
)

var (
	magicBytesBzip2 = [][]byte{
		[]byte("BZh1"), []byte("BZh2"), []byte("BZh3"),
		[]byte("BZh4"), []byte("BZh5"), []byte("BZh6"),
		[]byte("BZh7"), []byte("BZh8"), []byte("BZh9"),
	}
	magicBytesGZip   = [][]byte{{0x1f, 0x8b}}
	magicBytesLZ4    = [][]byte{{0x04, 0x22, 0x4D, 0x18}}
	magicBytesSnappy = [][]byte{append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...)}
	magicBytesXz     = [][]byte{{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}}
	magicBytesZlib   = [][]byte{
		{0x78, 0x01}, {0x78, 0x5e}, {0x78, 0x9c}, {0x78, 0xda},
	}
	magicBytesZstd = [][]byte{{0x28, 0xb5, 0x2f, 0xfd}}
)

// codec compresses and decompresses a byte stream. Codecs without magic
// bytes cannot be detected and are only available by file extension.
type codec struct {
	MagicBytes [][]byte
	NewWriter  func(io.Writer) (io.WriteCloser, error)
	NewReader  func(io.Reader) (io.ReadCloser, error)
}

// availableCodecs maps file extensions to the stream codecs used to wrap tar
// exports and to unwrap compressed tar imports.
var availableCodecs = map[string]codec{
	fileExtensionBrotli: {
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return brotli.NewWriter(w), nil
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(r)), nil
		},
	},
	fileExtensionBzip2: {
		MagicBytes: magicBytesBzip2,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return bzip2.NewReader(r, &bzip2.ReaderConfig{})
		},
	},
	fileExtensionGZip: {
		MagicBytes: magicBytesGZip,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	},
	fileExtensionLZ4: {
		MagicBytes: magicBytesLZ4,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
	},
	fileExtensionSnappy: {
		MagicBytes: magicBytesSnappy,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return snappy.NewBufferedWriter(w), nil
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(snappy.NewReader(r)), nil
		},
	},
	fileExtensionXz: {
		MagicBytes: magicBytesXz,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
	},
	fileExtensionZlib: {
		MagicBytes: magicBytesZlib,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zlib.NewWriter(w), nil
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		},
	},
	fileExtensionZstd: {
		MagicBytes: magicBytesZstd,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	},
}

// Compressions returns the file extensions of all supported tar stream codecs.
func Compressions() []string {
	exts := make([]string, 0, len(availableCodecs))
	for ext := range availableCodecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// lookupCodec returns the codec for the file extension ext.
func lookupCodec(ext string) (codec, error) {
	c, ok := availableCodecs[ext]
	if !ok {
		return codec{}, fmt.Errorf("unsupported compression %q", ext)
	}
	return c, nil
}

// detectCodec returns the extension of the codec whose magic bytes match
// header, or "" if none matches.
func detectCodec(header []byte) string {
	for ext, c := range availableCodecs {
		if matchesMagicBytes(header, 0, c.MagicBytes) {
			return ext
		}
	}
	return ""
}

// matchesMagicBytes checks if the bytes in data are equal to any of the
// magic bytes at the given offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}
