// internal/ingest/chunker.go
package ingest

import (
	"errors"
	"fmt"
)

// ErrInvalidChunking marks chunk window parameters the pipeline cannot run
// with.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Chunk is one fixed-size window of document text with its character offsets.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping fixed-size character windows. Each
// window starts size-overlap characters after the previous one, so adjacent
// chunks share exactly overlap characters.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window parameters. Overlap must be strictly
// smaller than the chunk size or the window would never advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be greater than zero, got %d", ErrInvalidChunking, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidChunking, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidChunking, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces the windows for text. Text shorter than one window yields a
// single chunk; empty text yields none. Windows are measured in runes, not
// bytes, so multi-byte characters are never cut across a chunk boundary.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
