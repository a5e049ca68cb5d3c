// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"fmt"
	"io"
)

// maxHeaderLength is the number of bytes needed to identify every known
// archive and compression format.
var maxHeaderLength int

// init calculates the maximum header length
func init() {
	magic := map[int][][]byte{
		0:         append(append(append([][]byte{}, magicBytesZip...), magicBytes7zip...), magicBytesRar...),
		offsetTar: magicBytesTar,
	}
	for _, c := range availableCodecs {
		magic[0] = append(magic[0], c.MagicBytes...)
	}
	for offset, mbs := range magic {
		for _, mb := range mbs {
			if offset+len(mb) > maxHeaderLength {
				maxHeaderLength = offset + len(mb)
			}
		}
	}
}

// headerReader is an implementation of io.Reader that allows the first bytes of
// the reader to be read twice. This is useful for identifying the archive type
// before reading it.
type headerReader struct {
	r      io.Reader
	header []byte
}

func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	// read at least headerSize bytes. If EOF, capture whatever was read.
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return &headerReader{r, buf[:n]}, nil
}

func (p *headerReader) Read(b []byte) (int, error) {
	// read from header first
	if len(p.header) > 0 {
		n := copy(b, p.header)
		p.header = p.header[n:]
		return n, nil
	}

	// then continue reading from the source
	return p.r.Read(b)
}

func (p *headerReader) PeekHeader() []byte {
	return p.header
}

// sniffFormat identifies the format of the stream in r by its magic bytes.
// For compressed streams the codec is unwrapped and the result is
// "tar.<ext>" if a tar is inside, otherwise the codec extension. An
// unknown format is reported as "".
func sniffFormat(r io.Reader) (string, error) {
	hr, err := newHeaderReader(r, maxHeaderLength)
	if err != nil {
		return "", err
	}

	header := hr.PeekHeader()
	switch {
	case isZip(header):
		return fileExtensionZip, nil
	case is7zip(header):
		return fileExtension7zip, nil
	case isRar(header):
		return fileExtensionRar, nil
	case isTar(header):
		return fileExtensionTar, nil
	}

	ext := detectCodec(header)
	if ext == "" {
		return "", nil
	}
	dr, err := availableCodecs[ext].NewReader(hr)
	if err != nil {
		// magic bytes matched by accident
		return "", nil
	}
	defer dr.Close()
	inner, err := newHeaderReader(dr, maxHeaderLength)
	if err != nil {
		return ext, nil
	}
	if isTar(inner.PeekHeader()) {
		return fileExtensionTar + "." + ext, nil
	}
	return ext, nil
}
