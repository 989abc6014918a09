// Package lineio turns a remote object body into a line or chunk iterator
// for cat-style consumption.
package lineio

import (
	"bufio"
	"io"
	"iter"
)

// DefaultChunkSize is the read size used by Chunks when none is given.
const DefaultChunkSize = 64 * 1024

// Lines yields each line of r, newline included. A final line without a
// trailing newline is yielded as-is. Read failures end the sequence with a
// single non-nil error.
func Lines(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				if !yield(line, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Chunks yields raw byte chunks of at most size bytes from r. A size of
// zero or less uses DefaultChunkSize. The yielded slice is reused between
// iterations; callers that keep a chunk must copy it.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
