package codec

import (
	"encoding/binary"
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// maxFrameSamples is the largest Opus frame: 120ms at 48kHz per channel
const maxFrameSamples = 5760

// Decoder converts compressed Opus frames into raw interleaved 16-bit
// little-endian PCM. It holds codec state across frames of one speaker
// turn and must be released with Close when the turn ends.
type Decoder struct {
	dec        *opus.Decoder
	channels   int
	sampleRate int
	pcm        []int16 // scratch buffer reused across Decode calls
	closed     bool

	// Statistics
	framesDecoded uint64
	framesFailed  uint64
}

// NewDecoder creates an Opus decoder for the given PCM output format
func NewDecoder(sampleRate, channels int) (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &Decoder{
		dec:        dec,
		channels:   channels,
		sampleRate: sampleRate,
		pcm:        make([]int16, maxFrameSamples*channels),
	}, nil
}

// Decode decodes one compressed frame and returns the resulting PCM bytes.
// The returned slice is freshly allocated and safe to hand off. An empty
// frame (DTX) yields an empty result and no error. A malformed frame
// returns an error; the decoder remains usable for subsequent frames.
func (d *Decoder) Decode(frame []byte) ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("decoder is closed")
	}

	if len(frame) == 0 {
		return nil, nil
	}

	samplesPerChannel, err := d.dec.Decode(frame, d.pcm)
	if err != nil {
		d.framesFailed++
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	if samplesPerChannel == 0 {
		return nil, nil
	}

	d.framesDecoded++

	samples := d.pcm[:samplesPerChannel*d.channels]
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	return out, nil
}

// FramesDecoded returns the number of successfully decoded frames
func (d *Decoder) FramesDecoded() uint64 {
	return d.framesDecoded
}

// FramesFailed returns the number of frames that failed to decode
func (d *Decoder) FramesFailed() uint64 {
	return d.framesFailed
}

// Close releases the decoder. Decode returns an error after Close.
func (d *Decoder) Close() {
	d.closed = true
	d.dec = nil
}
