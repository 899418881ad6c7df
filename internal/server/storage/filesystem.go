package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrExists means a file is already stored at the target path.
// Saves never overwrite: duplicates are rejected, not replaced.
var ErrExists = errors.New("file already exists")

// Store defines the interface for namespace-scoped file storage.
// This allows swapping the filesystem for another backend later.
type Store interface {
	Save(user, relPath string, data io.Reader) (int64, error)
	Path(user, relPath string) string
	Delete(user, relPath string) error
	UserDir(user string) (string, error)
	EnsureDir() error
}

// FileSystemStore keeps each user's files under basePath/<user>/<relpath>.
// Per-user directories are created lazily and idempotently on first save.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage root if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save writes data to <base>/<user>/<relpath>, creating parent directories
// as needed. relPath must already be sanitized by the caller. The create is
// exclusive: an existing file yields ErrExists and is left untouched.
// Returns the number of bytes written.
func (fs *FileSystemStore) Save(user, relPath string, data io.Reader) (int64, error) {
	filePath := fs.Path(user, relPath)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", filePath, err)
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrExists, relPath)
		}
		return 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, data)
	if err != nil {
		// Clean up partial file on error
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// Path returns the on-disk path for a stored file.
func (fs *FileSystemStore) Path(user, relPath string) string {
	return filepath.Join(fs.basePath, user, filepath.FromSlash(relPath))
}

// Delete removes a stored file. Missing files are not an error.
func (fs *FileSystemStore) Delete(user, relPath string) error {
	filePath := fs.Path(user, relPath)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// UserDir returns the namespace's storage directory, or an error satisfying
// os.IsNotExist when the namespace has never stored anything.
func (fs *FileSystemStore) UserDir(user string) (string, error) {
	dir := filepath.Join(fs.basePath, user)
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}
