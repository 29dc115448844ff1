package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrExists is returned by Create when the target path is taken.
var ErrExists = errors.New("file already exists")

// Storage is the set of file operations the task engine needs. Paths are
// relative to the vault root.
type Storage interface {
	Read(path string) (string, error)
	Write(path, text string) error
	// Create writes a new file and fails with ErrExists if path is taken.
	Create(path, text string) error
	Move(from, to string) error
	Exists(path string) (bool, error)
	// EnsureFolder creates path and its parents. An existing folder is not
	// an error.
	EnsureFolder(path string) error
}

// FS implements Storage on top of an afero filesystem.
type FS struct {
	fs afero.Fs
}

// Ensure FS implements Storage
var _ Storage = (*FS)(nil)

// NewFS wraps fs.
func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOSStorage returns storage rooted at the vault directory on disk.
func NewOSStorage(vaultPath string) *FS {
	return NewFS(afero.NewBasePathFs(afero.NewOsFs(), vaultPath))
}

func (s *FS) Read(path string) (string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (s *FS) Write(path, text string) error {
	if err := afero.WriteFile(s.fs, path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *FS) Create(path, text string) error {
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) || errors.Is(err, afero.ErrFileExists) {
			return fmt.Errorf("create %s: %w", path, ErrExists)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.WriteString(f, text); err != nil {
		f.Close()
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (s *FS) Move(from, to string) error {
	if err := s.fs.Rename(from, to); err != nil {
		return fmt.Errorf("move %s to %s: %w", from, to, err)
	}
	return nil
}

func (s *FS) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

func (s *FS) EnsureFolder(path string) error {
	info, err := s.fs.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s is not a folder", path)
		}
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Clean(path), 0755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}
