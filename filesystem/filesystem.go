package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Error constants for better error handling
var (
	ErrFileNotFound = errors.New("filesystem: file not found")
	ErrInvalidPath  = errors.New("filesystem: invalid path")
)

// Filesystem resolves resource names below a root directory. Names use
// forward slashes and may not point outside the root.
type Filesystem interface {
	Open(name string) (io.ReadCloser, error)
}

type localFileSystem struct {
	root string
}

func NewLocalFileSystem(root string) Filesystem {
	return &localFileSystem{root: root}
}

func (filesystem *localFileSystem) resolve(name string) (string, error) {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return filepath.Join(filesystem.root, filepath.FromSlash(name)), nil
}

// Open opens the named file for reading. A missing file or a directory
// yields an error wrapping ErrFileNotFound.
func (filesystem *localFileSystem) Open(name string) (io.ReadCloser, error) {
	path, err := filesystem.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, err
	}

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("closing file error", "error", closeErr)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, name)
	}

	return file, nil
}
