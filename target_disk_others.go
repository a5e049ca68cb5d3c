// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package export

import (
	"os"
	"time"
)

// writable is not checked up front on this platform; failures surface when
// the first directory is created.
func writable(_ string) error {
	return nil
}

// chtimes modifies the access and modified timestamps on a target path.
func chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}
