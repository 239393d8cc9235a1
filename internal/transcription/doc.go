// Package transcription implements the HTTP client for the speech-to-text API.
// It uploads recorded WAV files as multipart form data, retries transient
// failures with exponential backoff, and returns the transcript text.
package transcription
