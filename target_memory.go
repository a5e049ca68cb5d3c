// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// TargetMemory is an in-memory filesystem implementing [Target]. It is a map
// of slash separated paths to [MemoryEntry]. The root "." always exists.
// Permissions are recorded but not enforced.
//
// TargetMemory also implements [fs.FS], [fs.StatFS], [fs.ReadDirFS] and
// [fs.ReadFileFS], so an exploded export can be inspected with [fs.WalkDir].
type TargetMemory struct {
	files sync.Map // map[string]*MemoryEntry
}

// NewTargetMemory creates a new in-memory filesystem.
func NewTargetMemory() *TargetMemory {
	return &TargetMemory{}
}

// memoryPath converts a platform path to a valid [fs.FS] path.
func memoryPath(name string) (string, error) {
	p := path.Clean(filepath.ToSlash(name))
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("%w: %s", fs.ErrInvalid, name)
	}
	return p, nil
}

// CreateFile creates a new file in the in-memory filesystem. If the overwrite flag is set to false
// and the file already exists, an error is returned. The parent directory must exist.
func (m *TargetMemory) CreateFile(name string, src io.Reader, mode fs.FileMode, overwrite bool) (int64, error) {
	p, err := memoryPath(name)
	if err != nil {
		return 0, err
	}
	if p == "." {
		return 0, fmt.Errorf("%w: %s", fs.ErrInvalid, name)
	}
	if parent, err := m.Stat(path.Dir(p)); err != nil || !parent.IsDir() {
		return 0, fmt.Errorf("%w: parent of %s", fs.ErrNotExist, p)
	}
	if e, ok := m.files.Load(p); ok {
		if e.(*MemoryEntry).IsDir() {
			return 0, fmt.Errorf("is a directory: %s", p)
		}
		if !overwrite {
			return 0, fmt.Errorf("%w: %s", fs.ErrExist, p)
		}
	}

	// copy content into buffer
	var buf bytes.Buffer
	n, err := io.Copy(&buf, src)
	if err != nil {
		return n, err
	}

	m.files.Store(p, &MemoryEntry{
		FileInfo: &MemoryFileInfo{name: path.Base(p), size: n, mode: mode.Perm(), modTime: now()},
		Data:     buf.Bytes(),
	})
	return n, nil
}

// CreateDir creates a directory and all missing parents. If the directory
// already exists, nothing is done. An error is returned if a file occupies
// any element of the path.
func (m *TargetMemory) CreateDir(name string, mode fs.FileMode) error {
	p, err := memoryPath(name)
	if err != nil {
		return err
	}
	if p == "." {
		return nil
	}

	segments := strings.Split(p, "/")
	for i := range segments {
		current := strings.Join(segments[:i+1], "/")
		if e, ok := m.files.Load(current); ok {
			if !e.(*MemoryEntry).IsDir() {
				return fmt.Errorf("not a directory: %s", current)
			}
			continue
		}
		m.files.Store(current, &MemoryEntry{
			FileInfo: &MemoryFileInfo{name: segments[i], mode: mode.Perm() | fs.ModeDir, modTime: now()},
		})
	}
	return nil
}

// Lstat returns the FileInfo for the given path.
func (m *TargetMemory) Lstat(name string) (fs.FileInfo, error) {
	return m.Stat(name)
}

// Stat returns the FileInfo for the given path. If the path does not exist, an error is returned.
func (m *TargetMemory) Stat(name string) (fs.FileInfo, error) {
	p, err := memoryPath(name)
	if err != nil {
		return nil, err
	}
	if p == "." {
		return &MemoryFileInfo{name: ".", mode: fs.ModeDir | 0755}, nil
	}
	if e, ok := m.files.Load(p); ok {
		return e.(*MemoryEntry).FileInfo, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// Chtimes changes the modification time of the entry at name.
func (m *TargetMemory) Chtimes(name string, _, mtime time.Time) error {
	p, err := memoryPath(name)
	if err != nil {
		return err
	}
	e, ok := m.files.Load(p)
	if !ok {
		return &fs.PathError{Op: "chtimes", Path: name, Err: fs.ErrNotExist}
	}
	me := e.(*MemoryEntry)
	fi := *me.FileInfo
	fi.modTime = mtime
	m.files.Store(p, &MemoryEntry{FileInfo: &fi, Data: me.Data})
	return nil
}

// Writable returns an error if name is not an existing directory.
func (m *TargetMemory) Writable(name string) error {
	stat, err := m.Stat(name)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("not a directory: %s", name)
	}
	return nil
}

// Open opens the named file for reading. Directories cannot be opened, use
// [TargetMemory.ReadDir] instead.
func (m *TargetMemory) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	e, ok := m.files.Load(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	me := e.(*MemoryEntry)
	if me.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fmt.Errorf("cannot open directory")}
	}
	return &memoryFile{entry: me, r: bytes.NewReader(me.Data)}, nil
}

// ReadFile returns the content of the named file.
func (m *TargetMemory) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	e, ok := m.files.Load(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	me := e.(*MemoryEntry)
	if me.IsDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fmt.Errorf("cannot read directory")}
	}
	return append([]byte(nil), me.Data...), nil
}

// ReadDir returns the entries of the named directory sorted by name.
func (m *TargetMemory) ReadDir(name string) ([]fs.DirEntry, error) {
	stat, err := m.Stat(name)
	if err != nil {
		return nil, err
	}
	if !stat.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fmt.Errorf("not a directory")}
	}

	var entries []fs.DirEntry
	m.files.Range(func(entryPath, me any) bool {
		if path.Dir(entryPath.(string)) == name {
			entries = append(entries, me.(*MemoryEntry))
		}
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

// MemoryEntry is an entry in the in-memory filesystem
type MemoryEntry struct {
	FileInfo *MemoryFileInfo
	Data     []byte
}

// Name returns the base name of the entry.
func (me *MemoryEntry) Name() string {
	return me.FileInfo.Name()
}

// IsDir returns true for directories.
func (me *MemoryEntry) IsDir() bool {
	return me.FileInfo.IsDir()
}

// Type returns the type bits of the entry.
func (me *MemoryEntry) Type() fs.FileMode {
	return me.FileInfo.Mode().Type()
}

// Info returns the FileInfo of the entry.
func (me *MemoryEntry) Info() (fs.FileInfo, error) {
	return me.FileInfo, nil
}

// memoryFile is an open file of a [TargetMemory].
type memoryFile struct {
	entry *MemoryEntry
	r     *bytes.Reader
}

func (f *memoryFile) Stat() (fs.FileInfo, error) { return f.entry.FileInfo, nil }
func (f *memoryFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *memoryFile) Close() error               { return nil }

// MemoryFileInfo is a FileInfo implementation for the in-memory filesystem
type MemoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// Name returns the name of the file
func (fi *MemoryFileInfo) Name() string {
	return fi.name
}

// Size returns the size of the file
func (fi *MemoryFileInfo) Size() int64 {
	return fi.size
}

// Mode returns the mode of the file
func (fi *MemoryFileInfo) Mode() fs.FileMode {
	return fi.mode
}

// ModTime returns the modification time of the file
func (fi *MemoryFileInfo) ModTime() time.Time {
	return fi.modTime
}

// IsDir returns true if the file is a directory
func (fi *MemoryFileInfo) IsDir() bool {
	return fi.mode.IsDir()
}

// Sys returns the underlying data source (nil for in-memory filesystem)
func (fi *MemoryFileInfo) Sys() any {
	return nil
}
