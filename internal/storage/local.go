package storage

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// LocalStorage implements FileStorage on the local filesystem.
type LocalStorage struct {
	basePath  string
	mu        sync.RWMutex
	checksums map[string]string // md5 of the bytes written to each created file
}

// NewLocalStorage creates a local storage rooted at basePath. Relative paths
// passed to its methods resolve against basePath; an empty basePath leaves
// them relative to the working directory.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{
		basePath:  basePath,
		checksums: make(map[string]string),
	}
}

// Open opens path for reading, decompressing by suffix.
func (l *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	switch CompressionFor(path) {
	case CompressionGzip:
		zr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case CompressionSnappy:
		return &stackedReader{Reader: snappy.NewReader(f), closers: []func() error{f.Close}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			f.Close,
		}}, nil
	default:
		return f, nil
	}
}

// Create opens a temporary file next to path and renames it into place on
// Close, so a failed export never leaves a truncated file behind.
func (l *LocalStorage) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dest := l.fullPath(path)
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	w := &fileWriter{
		storage: l,
		path:    path,
		dest:    dest,
		tmp:     tmp,
		hash:    md5.New(),
	}
	w.buf = bufio.NewWriter(io.MultiWriter(tmp, w.hash))

	switch CompressionFor(path) {
	case CompressionGzip:
		zw := gzip.NewWriter(w.buf)
		w.Writer, w.codecClose = zw, zw.Close
	case CompressionSnappy:
		sw := snappy.NewBufferedWriter(w.buf)
		w.Writer, w.codecClose = sw, sw.Close
	case CompressionZstd:
		zw, err := zstd.NewWriter(w.buf)
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		w.Writer, w.codecClose = zw, zw.Close
	default:
		w.Writer = w.buf
	}
	return w, nil
}

// Exists checks if a file exists.
func (l *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes a file.
func (l *LocalStorage) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.fullPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}

	l.mu.Lock()
	delete(l.checksums, path)
	l.mu.Unlock()
	return nil
}

// Checksum returns the md5 of the bytes last written to path by Create.
func (l *LocalStorage) Checksum(path string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum, ok := l.checksums[path]
	return sum, ok
}

// fullPath returns the full filesystem path for a file.
func (l *LocalStorage) fullPath(path string) string {
	if l.basePath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.basePath, path)
}

type stackedReader struct {
	io.Reader
	closers []func() error
}

func (r *stackedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type fileWriter struct {
	io.Writer
	codecClose func() error

	storage *LocalStorage
	path    string
	dest    string
	tmp     *os.File
	buf     *bufio.Writer
	hash    hash.Hash
	closed  bool
}

func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.finish()
	if err != nil {
		w.tmp.Close()
		os.Remove(w.tmp.Name())
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, w.path, err)
	}

	w.storage.mu.Lock()
	w.storage.checksums[w.path] = hex.EncodeToString(w.hash.Sum(nil))
	w.storage.mu.Unlock()
	return nil
}

func (w *fileWriter) finish() error {
	if w.codecClose != nil {
		if err := w.codecClose(); err != nil {
			return err
		}
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.tmp.Close(); err != nil {
		return err
	}
	return os.Rename(w.tmp.Name(), w.dest)
}
