// Package capture bridges Discord voice packets into the recording buffer.
// A coordinator routes inbound Opus packets to per-speaker turns; each turn
// owns one decoder for its lifetime and ends after a silence timeout.
package capture
