package audio

import (
	"sync"
	"time"
)

// Recording format constants. Discord voice delivers Opus encoded at
// 48 kHz stereo; decoded frames and the serialized WAV use the same format.
const (
	SampleRate    = 48000
	Channels      = 2
	BitsPerSample = 16
	BytesPerFrame = Channels * BitsPerSample / 8 // bytes per interleaved sample frame
)

// Buffer accumulates decoded PCM chunks for one recording session.
// Chunks are appended in arrival order and never reordered; concurrent
// speaker turns share a single buffer, so all mutation is mutex-guarded.
type Buffer struct {
	chunks     [][]byte
	totalBytes int
	lastAppend time.Time
	createdAt  time.Time
	drained    bool

	mu sync.RWMutex
}

// BufferStats represents a snapshot of buffer state for monitoring
type BufferStats struct {
	Chunks          int       `json:"chunks"`
	TotalBytes      int       `json:"total_bytes"`
	DurationSeconds float64   `json:"duration_seconds"`
	LastAppend      time.Time `json:"last_append"`
}

// NewBuffer creates an empty recording buffer
func NewBuffer() *Buffer {
	return &Buffer{
		chunks:    make([][]byte, 0, 256),
		createdAt: time.Now(),
	}
}

// Append adds a decoded PCM chunk to the end of the recording.
// The buffer takes ownership of the slice; callers must not reuse it.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)
	b.totalBytes += len(chunk)
	b.lastAppend = time.Now()
}

// Len returns the total number of buffered PCM bytes
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalBytes
}

// ChunkCount returns the number of appended chunks
func (b *Buffer) ChunkCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// Drain concatenates all chunks into one contiguous PCM block in append
// order and resets the buffer. It is called once, at session teardown; a
// subsequent drain yields an empty block.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	pcm := make([]byte, 0, b.totalBytes)
	for _, chunk := range b.chunks {
		pcm = append(pcm, chunk...)
	}

	b.chunks = nil
	b.totalBytes = 0
	b.drained = true

	return pcm
}

// Drained reports whether the buffer has been drained
func (b *Buffer) Drained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.drained
}

// Stats returns a snapshot of buffer state for the monitoring API
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		Chunks:          len(b.chunks),
		TotalBytes:      b.totalBytes,
		DurationSeconds: float64(b.totalBytes) / float64(SampleRate*BytesPerFrame),
		LastAppend:      b.lastAppend,
	}
}
