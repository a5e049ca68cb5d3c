// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Target specifies all functions the exploded backend needs to write an
// archive to a filesystem.
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned. If the
	// file does not exist, it should be created. The number of bytes written is returned, also along with an error.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool) (int64, error)

	// CreateDir creates a directory at the specified path with the specified mode, including all missing
	// parents. If the directory already exists, nothing is done. An error is returned if any element of the path
	// exists and is not a directory.
	CreateDir(path string, mode fs.FileMode) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in the output path.
	Lstat(path string) (fs.FileInfo, error)

	// Stat see docs for os.Stat. Main purpose is to check that the target location is a directory.
	Stat(path string) (fs.FileInfo, error)

	// Chtimes see docs for os.Chtimes. Main purpose is to stamp a fixed modification time.
	Chtimes(path string, atime, mtime time.Time) error

	// Writable returns an error if entries cannot be created in the directory at path.
	Writable(path string) error
}

// securityCheck walks every element of rel below base and returns an error if
// one of them is a symlink, or if an element other than the last one exists
// and is not a directory.
func securityCheck(t Target, base string, rel Path) error {
	current := base
	segments := rel.Segments()
	for i, segment := range segments {
		current = filepath.Join(current, segment)

		stat, err := t.Lstat(current)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if stat.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("symlink in path: %s", current)
		}
		if i < len(segments)-1 && !stat.IsDir() {
			return fmt.Errorf("not a directory: %s", current)
		}
	}
	return nil
}

// localPath converts p to a filesystem path below base.
func localPath(base string, p Path) string {
	return filepath.Join(append([]string{base}, p.Segments()...)...)
}
