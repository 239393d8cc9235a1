// Package codec wraps the Opus decoder used for Discord voice frames.
// One decoder instance is created per speaker turn and released when the
// turn ends; individual corrupt frames fail without poisoning decoder state.
package codec
