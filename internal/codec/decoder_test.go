package codec

import (
	"testing"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/orpheas/discord-voice-summary/internal/audio"
)

// encodeTestFrame produces one valid 20ms Opus frame of silence
func encodeTestFrame(t *testing.T) []byte {
	t.Helper()

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppVoIP)
	if err != nil {
		t.Fatalf("Failed to create test encoder: %v", err)
	}

	pcm := make([]int16, 960*audio.Channels) // 20ms at 48kHz stereo
	frame := make([]byte, 4000)

	n, err := enc.Encode(pcm, frame)
	if err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}

	return frame[:n]
}

func TestNewDecoder(t *testing.T) {
	dec, err := NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	defer dec.Close()

	if dec.FramesDecoded() != 0 {
		t.Errorf("Expected 0 decoded frames, got %d", dec.FramesDecoded())
	}
}

func TestNewDecoderInvalidArgs(t *testing.T) {
	if _, err := NewDecoder(0, audio.Channels); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := NewDecoder(audio.SampleRate, 0); err == nil {
		t.Error("Expected error for zero channels")
	}
}

func TestDecodeValidFrame(t *testing.T) {
	dec, err := NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	defer dec.Close()

	pcm, err := dec.Decode(encodeTestFrame(t))
	if err != nil {
		t.Fatalf("Decode failed for valid frame: %v", err)
	}

	// 20ms at 48kHz stereo 16-bit = 960 * 2 * 2 bytes
	expected := 960 * audio.BytesPerFrame
	if len(pcm) != expected {
		t.Errorf("Expected %d PCM bytes, got %d", expected, len(pcm))
	}

	if dec.FramesDecoded() != 1 {
		t.Errorf("Expected 1 decoded frame, got %d", dec.FramesDecoded())
	}
}

func TestDecodeCorruptFrameIsIsolated(t *testing.T) {
	dec, err := NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	defer dec.Close()

	// A garbage frame must fail without poisoning decoder state
	corrupt := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := dec.Decode(corrupt); err == nil {
		t.Error("Expected error for corrupt frame")
	}

	if dec.FramesFailed() != 1 {
		t.Errorf("Expected 1 failed frame, got %d", dec.FramesFailed())
	}

	// A subsequent valid frame must decode correctly
	pcm, err := dec.Decode(encodeTestFrame(t))
	if err != nil {
		t.Fatalf("Decode failed for valid frame after corrupt one: %v", err)
	}

	if len(pcm) == 0 {
		t.Error("Expected PCM output for valid frame after corrupt one")
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	dec, err := NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	defer dec.Close()

	pcm, err := dec.Decode(nil)
	if err != nil {
		t.Errorf("Expected no error for empty frame, got %v", err)
	}

	if len(pcm) != 0 {
		t.Errorf("Expected empty result for empty frame, got %d bytes", len(pcm))
	}
}

func TestDecodeAfterClose(t *testing.T) {
	dec, err := NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	dec.Close()

	if _, err := dec.Decode(encodeTestFrame(t)); err == nil {
		t.Error("Expected error when decoding after Close")
	}
}
