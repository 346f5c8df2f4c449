// Package artifact resolves where model artifacts live and reads them back
// for discovery and size reporting.
package artifact

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs"
)

// Store reads artifacts through an afs.Service so local paths and URLs share
// one code path.
type Store struct {
	fs afs.Service
}

func NewStore() *Store {
	return &Store{fs: afs.New()}
}

// EnsureDir creates dir and its parents. It succeeds when dir already exists
// and fails when a file occupies the path.
func (s *Store) EnsureDir(ctx context.Context, dir string) error {
	url, err := toURL(dir)
	if err != nil {
		return err
	}
	ok, err := s.fs.Exists(ctx, url)
	if err != nil {
		return fmt.Errorf("check output dir %s: %w", dir, err)
	}
	if ok {
		obj, err := s.fs.Object(ctx, url)
		if err != nil {
			return fmt.Errorf("stat output dir %s: %w", dir, err)
		}
		if !obj.IsDir() {
			return fmt.Errorf("output dir %s is a file", dir)
		}
		return nil
	}
	if err := s.fs.Create(ctx, url, 0o755, true); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	url, err := toURL(path)
	if err != nil {
		return false, err
	}
	ok, err := s.fs.Exists(ctx, url)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", path, err)
	}
	if !ok {
		return false, nil
	}
	obj, err := s.fs.Object(ctx, url)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return !obj.IsDir(), nil
}

// Size returns the byte size of the file at path.
func (s *Store) Size(ctx context.Context, path string) (int64, error) {
	url, err := toURL(path)
	if err != nil {
		return 0, err
	}
	obj, err := s.fs.Object(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if obj.IsDir() {
		return 0, fmt.Errorf("expected file at %s, found directory", path)
	}
	return obj.Size(), nil
}

// List returns the files directly inside dir whose extension matches ext
// (case-insensitive), in lexical order.
func (s *Store) List(ctx context.Context, dir, ext string) ([]string, error) {
	url, err := toURL(dir)
	if err != nil {
		return nil, err
	}
	objects, err := s.fs.List(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var paths []string
	for _, obj := range objects {
		if obj.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(obj.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, obj.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

func toURL(path string) (string, error) {
	if strings.Contains(path, "://") {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}
