package mocks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhd-cli/dhd/internal/ports"
)

// FileSystem is a thread-safe in-memory ports.FileSystem.
type FileSystem struct {
	mu       sync.RWMutex
	files    map[string][]byte
	modes    map[string]os.FileMode
	symlinks map[string]string
	dirs     map[string]bool
	writes   int
}

// NewFileSystem creates a new FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files:    make(map[string][]byte),
		modes:    make(map[string]os.FileMode),
		symlinks: make(map[string]string),
		dirs:     make(map[string]bool),
	}
}

// AddFile adds a file with mode 0644.
func (fs *FileSystem) AddFile(path string, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = []byte(content)
	fs.modes[path] = 0o644
}

// AddSymlink adds a symlink.
func (fs *FileSystem) AddSymlink(link, target string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.symlinks[link] = target
}

// AddDir adds a directory.
func (fs *FileSystem) AddDir(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
}

// Mutations returns how many mutating calls were made.
func (fs *FileSystem) Mutations() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.writes
}

// ReadFile reads a file.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if content, ok := fs.files[path]; ok {
		return content, nil
	}
	return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
}

// WriteFile writes a file.
func (fs *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writes++
	fs.files[path] = append([]byte(nil), data...)
	fs.modes[path] = perm
	delete(fs.symlinks, path)
	return nil
}

// Exists checks if a path is known.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, fileExists := fs.files[path]
	_, linkExists := fs.symlinks[path]
	return fileExists || linkExists || fs.dirs[path]
}

// IsSymlink checks if a path is a symlink.
func (fs *FileSystem) IsSymlink(path string) (bool, string) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if target, ok := fs.symlinks[path]; ok {
		return true, target
	}
	return false, ""
}

// CreateSymlink creates a symlink. It fails if link already exists.
func (fs *FileSystem) CreateSymlink(target, link string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.symlinks[link]; ok {
		return fmt.Errorf("symlink %s: %w", link, os.ErrExist)
	}
	if _, ok := fs.files[link]; ok || fs.dirs[link] {
		return fmt.Errorf("symlink %s: %w", link, os.ErrExist)
	}
	fs.writes++
	fs.symlinks[link] = target
	return nil
}

// Remove removes a single entry.
func (fs *FileSystem) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writes++
	delete(fs.files, path)
	delete(fs.modes, path)
	delete(fs.symlinks, path)
	delete(fs.dirs, path)
	return nil
}

// RemoveAll removes path and everything below it.
func (fs *FileSystem) RemoveAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writes++
	prefix := path + string(filepath.Separator)
	for p := range fs.files {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.files, p)
			delete(fs.modes, p)
		}
	}
	for p := range fs.symlinks {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.symlinks, p)
		}
	}
	for p := range fs.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.dirs, p)
		}
	}
	return nil
}

// MkdirAll creates a directory.
func (fs *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.dirs[path] {
		fs.writes++
	}
	fs.dirs[path] = true
	return nil
}

// Rename moves a file or symlink.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writes++
	if content, ok := fs.files[oldPath]; ok {
		fs.files[newPath] = content
		fs.modes[newPath] = fs.modes[oldPath]
		delete(fs.files, oldPath)
		delete(fs.modes, oldPath)
		return nil
	}
	if target, ok := fs.symlinks[oldPath]; ok {
		fs.symlinks[newPath] = target
		delete(fs.symlinks, oldPath)
		return nil
	}
	if fs.dirs[oldPath] {
		fs.dirs[newPath] = true
		delete(fs.dirs, oldPath)
		return nil
	}
	return fmt.Errorf("rename %s: %w", oldPath, os.ErrNotExist)
}

// FileHash returns the hex SHA256 of a file.
func (fs *FileSystem) FileHash(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	content, ok := fs.files[path]
	if !ok {
		return "", fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:]), nil
}

// IsDir checks if a path is a directory.
func (fs *FileSystem) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.dirs[path]
}

// CopyFile copies a file.
func (fs *FileSystem) CopyFile(src, dest string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	content, ok := fs.files[src]
	if !ok {
		return fmt.Errorf("open %s: %w", src, os.ErrNotExist)
	}
	fs.writes++
	fs.files[dest] = append([]byte(nil), content...)
	fs.modes[dest] = fs.modes[src]
	return nil
}

// GetFileInfo returns metadata about a file or directory.
func (fs *FileSystem) GetFileInfo(path string) (ports.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if content, ok := fs.files[path]; ok {
		return ports.FileInfo{
			Size:    int64(len(content)),
			Mode:    fs.modes[path],
			ModTime: time.Now(),
		}, nil
	}
	if fs.dirs[path] {
		return ports.FileInfo{Mode: os.ModeDir | 0o755, ModTime: time.Now(), IsDir: true}, nil
	}
	return ports.FileInfo{}, fmt.Errorf("stat %s: %w", path, os.ErrNotExist)
}

// Chmod sets the recorded mode of a file.
func (fs *FileSystem) Chmod(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[path]; !ok {
		return fmt.Errorf("chmod %s: %w", path, os.ErrNotExist)
	}
	fs.writes++
	fs.modes[path] = perm
	return nil
}

var _ ports.FileSystem = (*FileSystem)(nil)
