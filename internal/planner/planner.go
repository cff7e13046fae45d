// Package planner partitions a resource of known length into
// contiguous, non-overlapping byte-range chunks for concurrent fetch.
package planner

import "fmt"

// Chunk is one contiguous byte range assigned to a fetcher.
type Chunk struct {
	ID           int
	Start        int64
	EndInclusive int64
}

// Length returns the number of bytes the chunk spans.
func (c Chunk) Length() int64 { return c.EndInclusive - c.Start + 1 }

// Plan is an ordered, contiguous partition of [0, ContentLength).
type Plan struct {
	ContentLength int64
	Chunks        []Chunk
}

// Build partitions [0, contentLength) into n contiguous chunks. The
// remainder contentLength%n is assigned to the last chunk. If
// contentLength < n, n is clamped down to contentLength so every
// chunk spans at least one byte. If contentLength == 0, Build returns
// an empty plan.
func Build(contentLength int64, n int) (Plan, error) {
	if contentLength < 0 {
		return Plan{}, fmt.Errorf("planner: negative content length %d", contentLength)
	}
	if n < 1 {
		return Plan{}, fmt.Errorf("planner: thread count must be >= 1, got %d", n)
	}
	if contentLength == 0 {
		return Plan{ContentLength: 0}, nil
	}
	if contentLength < int64(n) {
		n = int(contentLength)
	}

	q := contentLength / int64(n)
	chunks := make([]Chunk, 0, n)
	var pos int64
	for i := 0; i < n; i++ {
		start := pos
		end := start + q - 1
		if i == n-1 {
			end = contentLength - 1
		}
		chunks = append(chunks, Chunk{ID: i, Start: start, EndInclusive: end})
		pos = end + 1
	}
	return Plan{ContentLength: contentLength, Chunks: chunks}, nil
}

// RangeHeader renders the chunk as an HTTP Range header value.
func (c Chunk) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", c.Start, c.EndInclusive)
}
