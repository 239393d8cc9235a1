// Package summary condenses voice transcripts through a chat-completion API.
// Transcripts under the minimum word count are returned unchanged.
package summary
