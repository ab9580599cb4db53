// Package filestore implements durable, fixed-size page I/O and directory
// management for the engine's on-disk database/table tree.
//
// Every page is exactly PageSize bytes, positioned at page_id * PageSize.
// Handles are small integers minted monotonically by Open and never reused
// within a process run, mirroring how the buffer pool and higher-level
// managers refer to open files cheaply without holding *os.File around.
package filestore

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// PageSize is the fixed size, in bytes, of every page in every managed file.
const PageSize = 8192

// Handle identifies an open file within one Store. Handles are minted
// monotonically and are never reused within a process run.
type Handle int

// Store owns a directory tree of databases and tables and performs all
// page-aligned reads and writes against it. It is the only component that
// talks to the host filesystem; everything above it (BufferPool, managers)
// goes through a Handle.
type Store struct {
	fs billy.Filesystem

	mu      sync.Mutex
	nextH   Handle
	handles map[Handle]billy.File
	paths   map[Handle]string
}

// Open creates a Store rooted at root, creating the directory if needed.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root %q: %w", root, err)
	}
	return &Store{
		fs:      osfs.New(root),
		nextH:   1,
		handles: make(map[Handle]billy.File),
		paths:   make(map[Handle]string),
	}, nil
}

// CreateFile creates a new, empty file at path. It fails if the file
// already exists.
func (s *Store) CreateFile(path string) error {
	if s.Exists(path) {
		return fmt.Errorf("filestore: create file %q: already exists", path)
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("filestore: create file %q: %w", path, err)
	}
	return f.Close()
}

// DeleteFile removes a single file.
func (s *Store) DeleteFile(path string) error {
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("filestore: delete file %q: %w", path, err)
	}
	return nil
}

// Exists reports whether path names a regular file.
func (s *Store) Exists(path string) bool {
	fi, err := s.fs.Stat(path)
	return err == nil && !fi.IsDir()
}

// ExistsFolder reports whether path names a directory.
func (s *Store) ExistsFolder(path string) bool {
	fi, err := s.fs.Stat(path)
	return err == nil && fi.IsDir()
}

// CreateFolder creates path and any missing parents.
func (s *Store) CreateFolder(path string) error {
	if err := s.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("filestore: create folder %q: %w", path, err)
	}
	return nil
}

// DeleteFolder recursively removes path and everything under it.
func (s *Store) DeleteFolder(path string) error {
	if !s.ExistsFolder(path) {
		return nil
	}
	entries, err := s.fs.ReadDir(path)
	if err != nil {
		return fmt.Errorf("filestore: list folder %q: %w", path, err)
	}
	for _, ent := range entries {
		child := s.fs.Join(path, ent.Name())
		if ent.IsDir() {
			if err := s.DeleteFolder(child); err != nil {
				return err
			}
			continue
		}
		if err := s.fs.Remove(child); err != nil {
			return fmt.Errorf("filestore: delete file %q: %w", child, err)
		}
	}
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("filestore: delete folder %q: %w", path, err)
	}
	return nil
}

// ListFolder returns the immediate child names of path, sorted, for
// callers that need to enumerate sidecar or index files.
func (s *Store) ListFolder(path string) ([]string, error) {
	entries, err := s.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: list folder %q: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		names = append(names, ent.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Open opens the existing file at path and mints a new Handle for it. It
// fails if the file does not exist; CreateFile creates files.
func (s *Store) Open(path string) (Handle, error) {
	f, err := s.fs.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return 0, fmt.Errorf("filestore: open %q: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.nextH
	s.nextH++
	s.handles[h] = f
	s.paths[h] = path
	return h, nil
}

// Close closes a handle. The handle is not reused.
func (s *Store) Close(h Handle) error {
	s.mu.Lock()
	f, ok := s.handles[h]
	delete(s.handles, h)
	delete(s.paths, h)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("filestore: close: unknown handle %d", h)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("filestore: close handle %d: %w", h, err)
	}
	return nil
}

// Path returns the path a handle was opened with.
func (s *Store) Path(h Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[h]
	return p, ok
}

func (s *Store) file(h Handle) (billy.File, error) {
	s.mu.Lock()
	f, ok := s.handles[h]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("filestore: unknown handle %d", h)
	}
	return f, nil
}

// ReadPage reads exactly PageSize bytes for pageID into buf, which must be
// at least PageSize long. A page that was never written (short read at EOF)
// is treated as all-zero, since pages may be read before their first write.
func (s *Store) ReadPage(h Handle, pageID uint32, buf []byte) error {
	if len(buf) < PageSize {
		return fmt.Errorf("filestore: read page: buffer too small (%d < %d)", len(buf), PageSize)
	}
	f, err := s.file(h)
	if err != nil {
		return err
	}

	off := int64(pageID) * PageSize
	n, err := f.ReadAt(buf[:PageSize], off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("filestore: read page %d: %w", pageID, err)
	}
	for i := n; i < PageSize; i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes exactly PageSize bytes from buf at pageID's offset.
func (s *Store) WritePage(h Handle, pageID uint32, buf []byte) error {
	if len(buf) < PageSize {
		return fmt.Errorf("filestore: write page: buffer too small (%d < %d)", len(buf), PageSize)
	}
	f, err := s.file(h)
	if err != nil {
		return err
	}

	off := int64(pageID) * PageSize
	seeker, ok := f.(io.Seeker)
	if !ok {
		return fmt.Errorf("filestore: write page %d: file does not support Seek", pageID)
	}
	if _, err := seeker.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("filestore: seek page %d: %w", pageID, err)
	}
	if _, err := f.Write(buf[:PageSize]); err != nil {
		return fmt.Errorf("filestore: write page %d: %w", pageID, err)
	}
	return nil
}
