package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

var ErrObjectNotFound = goerr.New("object not found")

// Storage is the interface for object persistence. Writes become visible only
// after the returned writer is closed without error.
type Storage interface {
	// Put returns a writer that stores an object under key
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens the object under key; a missing key yields ErrObjectNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client. Keys are placed under prefix.
func NewStorage(ctx context.Context, bucketName, prefix string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *storageClient) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.objectName(key))
	return obj.NewWriter(ctx), nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.objectName(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "no such object",
				goerr.V("bucket", s.bucketName),
				goerr.V("key", s.objectName(key)))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", s.objectName(key)))
	}

	return reader, nil
}

// localStorage implements Storage on a directory
type localStorage struct {
	dir string
}

// NewLocalStorage stores objects as files under dir, creating it if needed
func NewLocalStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create object directory", goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create temp file", goerr.V("key", key))
	}

	return &atomicFile{File: tmp, dst: dst}, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	src := filepath.Join(s.dir, filepath.FromSlash(key))
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "no such file", goerr.V("path", src))
		}
		return nil, goerr.Wrap(err, "failed to open file", goerr.V("path", src))
	}
	return f, nil
}

// Abort discards an unfinished write. Writers without explicit abort support are
// closed; callers cancel the writer's context first so remote writes are dropped.
func Abort(w io.WriteCloser) {
	if a, ok := w.(interface{ Abort() error }); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

// atomicFile renames the temp file onto dst when closed
type atomicFile struct {
	*os.File
	dst    string
	closed bool
}

func (f *atomicFile) Abort() error {
	if f.closed {
		return nil
	}
	f.closed = true
	_ = f.File.Close()
	return os.Remove(f.File.Name())
}

func (f *atomicFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		_ = os.Remove(f.File.Name())
		return goerr.Wrap(err, "failed to sync file", goerr.V("path", f.dst))
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.File.Name())
		return goerr.Wrap(err, "failed to close file", goerr.V("path", f.dst))
	}
	if err := os.Rename(f.File.Name(), f.dst); err != nil {
		_ = os.Remove(f.File.Name())
		return goerr.Wrap(err, "failed to rename file", goerr.V("path", f.dst))
	}
	return nil
}
