// Package chunker reads a file as a sequence of bounded-size windows for
// chunked uploads. Reads are strictly sequential; the reader owns the file
// handle and must be closed by the caller.
package chunker

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrFileShrunk is returned when the file ends before the size measured at
// upload start. A truncated chunk is never emitted.
var ErrFileShrunk = errors.New("file is shorter than its measured size")

// Chunk is one window of file data.
type Chunk struct {
	// Index is 1-based.
	Index  int
	Offset int64
	Data   []byte
	// TotalRead is the number of bytes read so far, this chunk included.
	TotalRead int64
}

// Reader yields consecutive chunks of at most chunkSize bytes until fileSize
// bytes have been read. It is not restartable: to iterate again, create a new
// Reader.
type Reader struct {
	file      *os.File
	chunkSize int64
	fileSize  int64
	offset    int64
	index     int
}

// New opens path for sequential chunked reading. fileSize is the size
// measured by the caller at upload start, not re-stated here: the sequence
// covers exactly that many bytes or fails.
func New(path string, chunkSize, fileSize int64) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &Reader{
		file:      file,
		chunkSize: chunkSize,
		fileSize:  fileSize,
	}, nil
}

// Next returns the next chunk, or io.EOF after the last one.
func (r *Reader) Next() (Chunk, error) {
	remaining := r.fileSize - r.offset
	if remaining <= 0 {
		return Chunk{}, io.EOF
	}

	size := r.chunkSize
	if remaining < size {
		size = remaining
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Chunk{}, fmt.Errorf("read %d bytes at offset %d: %w", size, r.offset, ErrFileShrunk)
		}
		return Chunk{}, fmt.Errorf("read chunk at offset %d: %w", r.offset, err)
	}

	r.index++
	chunk := Chunk{
		Index:     r.index,
		Offset:    r.offset,
		Data:      data,
		TotalRead: r.offset + size,
	}
	r.offset += size

	return chunk, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
