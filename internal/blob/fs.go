package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FilesystemStore keeps blobs as files of a single directory.
type FilesystemStore struct {
	dir string
}

var _ Store = (*FilesystemStore)(nil)

func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "failed to create blob directory %s", dir)
	}
	return &FilesystemStore{dir: dir}, nil
}

// Put writes to a temporary file renamed over the key once complete, so readers
// never observe a partial blob.
func (s *FilesystemStore) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %s", key)
	}
	defer os.Remove(tmp.Name())

	newCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pr := newProgressReader(newCtx, r, key, size)

	written, err := io.Copy(tmp, pr)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("failed to write %s: expected %d bytes, received %d", key, size, written)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to store %s", key)
	}

	zap.S().Named("blob").Debugw("blob stored", "dir", s.dir, "key", key, "size", written)
	return nil
}

func (s *FilesystemStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", key)
		}
		return nil, errors.Wrapf(err, "failed to open %s", key)
	}
	return f, nil
}

func (s *FilesystemStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to stat %s", key)
	}
	return true, nil
}

func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "%s", key)
		}
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

func (s *FilesystemStore) Type() string {
	return TypeFilesystem
}

func (s *FilesystemStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
