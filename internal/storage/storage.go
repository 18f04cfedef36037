// Package storage provides file access for inputs, auxiliary filter files and
// exports, with transparent compression chosen by file suffix.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Common errors for storage operations.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrOpenFailed   = errors.New("open failed")
	ErrWriteFailed  = errors.New("write failed")
)

// FileStorage abstracts the files the store reads and writes.
type FileStorage interface {
	// Open returns a reader over the decompressed content of path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create returns a writer that compresses according to path's suffix.
	// The file only appears at path once the writer is closed successfully.
	Create(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists checks if a file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes a file. Removing a missing file is not an error.
	Remove(ctx context.Context, path string) error
}

// Checksummer is implemented by storages that record a digest of the files
// they write.
type Checksummer interface {
	Checksum(path string) (string, bool)
}

// Compression identifies a supported stream codec.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionSnappy
	CompressionZstd
)

// String returns the codec's file suffix without the dot.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gz"
	case CompressionSnappy:
		return "sz"
	case CompressionZstd:
		return "zst"
	default:
		return "none"
	}
}

// CompressionFor picks the codec from a path's suffix.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".sz", ".snappy":
		return CompressionSnappy
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// TrimCompression strips a recognised compression suffix, so
// "calls.vcf.gz" yields "calls.vcf".
func TrimCompression(path string) string {
	if CompressionFor(path) == CompressionNone {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}
