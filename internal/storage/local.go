package storage

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalStore keeps files under a root directory. Locations are absolute paths.
type LocalStore struct {
	fs   afero.Fs
	root string
}

func NewLocalStore(fsys afero.Fs, root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &Error{Op: "init", Path: root, Err: err}
	}
	if err := fsys.MkdirAll(abs, 0o755); err != nil {
		return nil, &Error{Op: "init", Path: abs, Err: err}
	}
	return &LocalStore{fs: fsys, root: abs}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(ctx context.Context, data []byte, dest string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(dest)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(full)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Op: "upload", Path: full, Err: err}
	}

	tmp, err := afero.TempFile(s.fs, dir, ".upload-*")
	if err != nil {
		return "", &Error{Op: "upload", Path: full, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return "", &Error{Op: "upload", Path: full, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return "", &Error{Op: "upload", Path: full, Err: err}
	}
	if err := s.fs.Rename(tmpName, full); err != nil {
		_ = s.fs.Remove(tmpName)
		return "", &Error{Op: "upload", Path: full, Err: err}
	}
	return full, nil
}

func (s *LocalStore) Download(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Op: "download", Path: full, Err: ErrNotFound}
		}
		return nil, &Error{Op: "download", Path: full, Err: err}
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(location)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Op: "delete", Path: full, Err: ErrNotFound}
		}
		return &Error{Op: "delete", Path: full, Err: err}
	}
	return nil
}

func (s *LocalStore) Move(ctx context.Context, location string, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := s.resolve(location)
	if err != nil {
		return "", err
	}
	dst, err := s.resolve(dest)
	if err != nil {
		return "", err
	}
	if _, err := s.fs.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Op: "move", Path: src, Err: ErrNotFound}
		}
		return "", &Error{Op: "move", Path: src, Err: err}
	}
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &Error{Op: "move", Path: dst, Err: err}
	}
	if err := s.fs.Rename(src, dst); err != nil {
		return "", &Error{Op: "move", Path: src, Err: err}
	}
	return dst, nil
}

// resolve maps a relative destination or a previously returned absolute
// location to a path that must stay inside root.
func (s *LocalStore) resolve(location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", &Error{Op: "resolve", Err: ErrInvalidPath}
	}
	p := filepath.FromSlash(location)
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)
	if p == s.root || !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", &Error{Op: "resolve", Path: location, Err: ErrInvalidPath}
	}
	return p, nil
}
