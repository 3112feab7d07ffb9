// Package util provides shared utilities for claudebell.
package util

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// DefaultBufferSize is the size of pooled read buffers.
const DefaultBufferSize = 4096

// bufferPool reduces allocations on the one-second tail path.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

// GetBuffer retrieves a buffer from the pool.
// The buffer should be returned via PutBuffer when done.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool for reuse.
func PutBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != DefaultBufferSize {
		return
	}
	bufferPool.Put(buf)
}

// ReadRemaining reads r until EOF using a pooled buffer and returns everything read.
// Bytes read before an error are still returned alongside it, so callers can decide
// whether a partial read is usable.
func ReadRemaining(r io.Reader) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	var out bytes.Buffer
	for {
		n, err := r.Read(*buf)
		if n > 0 {
			out.Write((*buf)[:n])
		}
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return out.Bytes(), err
		}
	}
}

// SplitLines splits data on '\n', drops the trailing empty fragment after a final
// newline and skips blank lines. A trailing '\r' is trimmed from each line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	parts := bytes.Split(data, []byte{'\n'})
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		p = bytes.TrimSuffix(p, []byte{'\r'})
		if len(p) == 0 {
			continue
		}
		lines = append(lines, string(p))
	}
	return lines
}
