// Package gziputil compresses cached upstream payloads.
package gziputil

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

var writerPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// MaxDecompressedSize bounds Decompress output. Movie payloads are a few
// hundred KB at most.
const MaxDecompressedSize = 16 << 20

// Compress gzip-compresses data using pooled writers and buffers.
func Compress(data []byte) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	gw := writerPool.Get().(*gzip.Writer)
	gw.Reset(buf)
	defer func() {
		gw.Reset(nil)
		writerPool.Put(gw)
	}()

	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decompress inflates gzip data, failing when the result would exceed
// MaxDecompressedSize.
func Decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if _, err := io.Copy(buf, io.LimitReader(gr, MaxDecompressedSize+1)); err != nil {
		return nil, err
	}
	if buf.Len() > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", MaxDecompressedSize)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// IsGzipped reports whether data starts with the gzip magic bytes.
func IsGzipped(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}
