// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestUnixTimespec(t *testing.T) {
	tests := []struct {
		input time.Time
		want  unix.Timespec
	}{
		{
			time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			unix.NsecToTimespec(0),
		},
		{
			time.Date(1970, 1, 1, 0, 0, 0, 1, time.UTC),
			unix.NsecToTimespec(1),
		},
		{
			time.Date(1970, 1, 1, 0, 0, 1, 1000, time.UTC),
			unix.NsecToTimespec(1e9 + 1000),
		},
	}

	for _, test := range tests {
		t.Run(test.input.String(), func(t *testing.T) {
			got := unixTimespec(test.input)
			if got != test.want {
				t.Errorf("unixTimespec(%v) = %v; want %v", test.input, got, test.want)
			}
		})
	}
}

func TestChtimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	mtime := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes() error = %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !stat.ModTime().Equal(mtime) {
		t.Errorf("mod time = %v; want %v", stat.ModTime(), mtime)
	}
}

func TestWritable(t *testing.T) {
	if err := writable(t.TempDir()); err != nil {
		t.Errorf("writable(tempdir) error = %v", err)
	}
	if err := writable(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("writable(missing) expected error")
	}
}
