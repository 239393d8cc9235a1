// Package audio handles PCM accumulation and WAV serialization.
// It implements the per-session recording buffer that decoded voice frames
// are appended to, and the RIFF/WAVE encoding of the drained recording.
package audio
