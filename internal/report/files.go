// Package report writes generated utilities, distortion tables and run
// summaries.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// IsCompressed reports whether path names a zstd file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

type compressedWriter struct {
	enc  *zstd.Encoder
	buf  *bufio.Writer
	file *os.File
}

func (w *compressedWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

func (w *compressedWriter) Close() error {
	err := w.enc.Close()
	err = errors.Join(err, w.buf.Flush())
	return errors.Join(err, w.file.Close())
}

// Create opens path for writing, creating parent directories. A ".zst"
// suffix compresses everything written.
func Create(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}

	buf := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd: failed to create writer: %w", err)
	}
	return &compressedWriter{enc: enc, buf: buf, file: f}, nil
}

type compressedReader struct {
	dec  *zstd.Decoder
	file *os.File
}

func (r *compressedReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *compressedReader) Close() error {
	r.dec.Close()
	return r.file.Close()
}

// Open opens path for reading, decompressing ".zst" files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
	}
	return &compressedReader{dec: dec, file: f}, nil
}

// WriteFile creates path and hands the writer to fn.
func WriteFile(path string, fn func(io.Writer) error) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
