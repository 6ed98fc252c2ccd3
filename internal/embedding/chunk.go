package embedding

import (
	"errors"
	"fmt"
)

// ErrInvalidOverlap indicates chunking parameters that would never terminate.
var ErrInvalidOverlap = errors.New("chunk overlap must be smaller than chunk size")

// ChunkText splits text into overlapping windows of at most size bytes.
//
// Starting at offset 0 it emits text[start:min(start+size, len)]; when a
// window reaches the end of the text it stops, otherwise start advances by
// size-overlap. Empty text yields no chunks. overlap >= size is rejected
// because the window would never advance.
//
// Chunk boundaries are byte offsets, matching how note content is persisted;
// a window may split a multi-byte rune, which embedding backends tolerate.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}
	if text == "" {
		return nil, nil
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])

		if end == len(text) {
			break
		}
		start += size - overlap
	}
	return chunks, nil
}
