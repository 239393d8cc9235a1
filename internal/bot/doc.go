// Package bot wires the Discord gateway to the recording pipeline. It
// handles the join and leave text commands, manages one recording session
// per guild, and runs the leave-time pipeline: serialize the captured
// audio to WAV, transcribe it, summarize the transcript, and post the
// result back to the channel.
package bot
