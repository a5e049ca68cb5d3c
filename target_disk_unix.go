// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package export

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// writable checks write and search permission on a directory.
func writable(path string) error {
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	return nil
}

// chtimes modifies the access and modified timestamps on a target path
// with nanosecond precision.
func chtimes(path string, atime, mtime time.Time) error {
	if err := unix.UtimesNano(path, []unix.Timespec{
		unixTimespec(atime),
		unixTimespec(mtime),
	}); err != nil {
		return fmt.Errorf("chtimes failed: %w", err)
	}
	return nil
}

// unixTimespec converts a time.Time to a unix.Timespec.
func unixTimespec(t time.Time) unix.Timespec {
	return unix.NsecToTimespec(t.UnixNano())
}
