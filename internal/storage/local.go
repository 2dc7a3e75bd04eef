package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opendrive/server/pkg/logger"
)

var (
	ErrOutsideDrive = errors.New("path is outside the drive root")
	ErrInvalidName  = errors.New("invalid file name")
	ErrDriveRoot    = errors.New("refusing to remove the drive root")
)

// LocalDrive is the directory tree that mirrors the folders table. Every
// path it touches must resolve inside root.
type LocalDrive struct {
	root string
}

func NewLocalDrive(root string) (*LocalDrive, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving drive root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating drive root: %w", err)
	}
	return &LocalDrive{root: filepath.Clean(abs)}, nil
}

// Root returns the drive root with a trailing separator; root folders use it
// as their base path.
func (d *LocalDrive) Root() string {
	return d.root + string(filepath.Separator)
}

// Contains reports whether path lies strictly inside the drive root.
func (d *LocalDrive) Contains(path string) bool {
	if path == "" || strings.Contains(path, "\x00") {
		return false
	}
	clean := filepath.Clean(path)
	return strings.HasPrefix(clean, d.root+string(filepath.Separator))
}

func (d *LocalDrive) Exists(path string) bool {
	if !d.Contains(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (d *LocalDrive) MakeDir(path string) error {
	if !d.Contains(path) {
		return ErrOutsideDrive
	}
	if err := os.Mkdir(filepath.Clean(path), 0o755); err != nil {
		logger.Error("drive_mkdir_failed", err, map[string]interface{}{
			"path": path,
		})
		return err
	}
	return nil
}

func (d *LocalDrive) RemoveAll(path string) error {
	if filepath.Clean(path) == d.root {
		return ErrDriveRoot
	}
	if !d.Contains(path) {
		return ErrOutsideDrive
	}
	if err := os.RemoveAll(filepath.Clean(path)); err != nil {
		logger.Error("drive_remove_failed", err, map[string]interface{}{
			"path": path,
		})
		return err
	}
	return nil
}

// FilePath joins dir and a sanitized file name.
func (d *LocalDrive) FilePath(dir, name string) (string, error) {
	clean, err := CleanFileName(name)
	if err != nil {
		return "", err
	}
	if !d.Contains(dir) {
		return "", ErrOutsideDrive
	}
	return filepath.Join(dir, clean), nil
}

// SaveFile writes src to dir/name, replacing any file of the same name.
// A partially written file is removed.
func (d *LocalDrive) SaveFile(dir, name string, src io.Reader) (string, int64, error) {
	target, err := d.FilePath(dir, name)
	if err != nil {
		return "", 0, err
	}

	dst, err := os.Create(target)
	if err != nil {
		return "", 0, err
	}

	written, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(target)
		return "", 0, copyErr
	}

	return target, written, nil
}

// RemoveFile deletes dir/name. It reports false without error when the file
// is not there.
func (d *LocalDrive) RemoveFile(dir, name string) (bool, error) {
	target, err := d.FilePath(dir, name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}

	if err := os.Remove(target); err != nil {
		return false, err
	}
	return true, nil
}

// Rel returns path relative to the drive root in slash form. Replica object
// names are built from it.
func (d *LocalDrive) Rel(path string) (string, error) {
	if !d.Contains(path) {
		return "", ErrOutsideDrive
	}
	rel, err := filepath.Rel(d.root, filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func CleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || strings.Contains(name, "\x00") {
		return "", ErrInvalidName
	}
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return "", ErrInvalidName
	}
	return base, nil
}
