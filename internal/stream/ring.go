package stream

// DefaultMaxChunks bounds how many raw output chunks are retained per
// session. Long-running jobs must not grow memory without limit; the UI
// only needs recent output plus the final collected result.
const DefaultMaxChunks = 1000

// ChunkRing is a fixed-capacity ring buffer of raw output chunks.
// Appending beyond capacity evicts the oldest chunk (FIFO); remaining
// chunks keep their original order. Not safe for concurrent use; the
// owning session serializes access.
type ChunkRing struct {
	buf   [][]byte
	head  int // index of the oldest chunk
	count int
}

// NewChunkRing creates a ring retaining at most capacity chunks.
// Non-positive capacities fall back to DefaultMaxChunks.
func NewChunkRing(capacity int) *ChunkRing {
	if capacity <= 0 {
		capacity = DefaultMaxChunks
	}
	return &ChunkRing{buf: make([][]byte, capacity)}
}

// Append adds a chunk, evicting the oldest when full. The ring takes
// ownership of the slice.
func (r *ChunkRing) Append(chunk []byte) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = chunk
		r.count++
		return
	}
	r.buf[r.head] = chunk
	r.head = (r.head + 1) % len(r.buf)
}

// Snapshot returns the retained chunks, oldest first.
func (r *ChunkRing) Snapshot() [][]byte {
	out := make([][]byte, r.count)
	for i := range r.count {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained chunks.
func (r *ChunkRing) Len() int { return r.count }

// Cap returns the maximum number of retained chunks.
func (r *ChunkRing) Cap() int { return len(r.buf) }

// Reset discards all chunks, releasing their memory.
func (r *ChunkRing) Reset() {
	for i := range r.buf {
		r.buf[i] = nil
	}
	r.head = 0
	r.count = 0
}
