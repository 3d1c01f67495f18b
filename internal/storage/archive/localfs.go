package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/newthinker/backgrid/internal/core"
)

// LocalFS implements Storage for local filesystem
type LocalFS struct {
	basePath string
}

// NewLocalFS creates a new LocalFS storage
func NewLocalFS(basePath string) (*LocalFS, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating base path: %w", err))
	}
	return &LocalFS{basePath: filepath.Clean(basePath)}, nil
}

// fullPath maps path under the base directory, rejecting escapes.
func (l *LocalFS) fullPath(path string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(path))
	if full != l.basePath && !strings.HasPrefix(full, l.basePath+string(filepath.Separator)) {
		return "", core.Errorf(core.ErrStorageFailed, "path %q escapes archive root", path)
	}
	return full, nil
}

func (l *LocalFS) Write(ctx context.Context, path string, data []byte) error {
	fullPath, err := l.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating directories: %w", err))
	}

	// write then rename so readers never see a partial file
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (l *LocalFS) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := l.fullPath(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	searchPath, err := l.fullPath(prefix)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	err = filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !strings.HasSuffix(path, ".tmp") {
			relPath, _ := filepath.Rel(l.basePath, path)
			paths = append(paths, filepath.ToSlash(relPath))
		}
		return nil
	})

	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	fullPath, err := l.fullPath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
