package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/orpheas/discord-voice-summary/internal/audio"
	"github.com/orpheas/discord-voice-summary/internal/capture"
	"github.com/orpheas/discord-voice-summary/internal/session"
)

// User-facing replies for the join and leave commands
const (
	msgNotInVoice    = "You are not in a voice channel."
	msgJoined        = "Joined voice channel and started recording."
	msgAlreadyActive = "Already recording in this server."
	msgNotActive     = "Not currently recording in this server."
	msgNoAudio       = "No audio was recorded."
	msgNoSpeech      = "No clear speech detected."
	msgLeft          = "Left voice channel."
)

// handleMessage routes prefixed commands from guild text channels
func (b *Bot) handleMessage(api discordAPI, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	prefix := b.config.Discord.CommandPrefix
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "join":
		b.countCommand()
		b.handleJoin(api, m.GuildID, m.ChannelID, m.Author.ID)
	case "leave":
		b.countCommand()
		b.handleLeave(api, m.GuildID, m.ChannelID)
	}
}

func (b *Bot) countCommand() {
	b.mu.Lock()
	b.commandsHandled++
	b.mu.Unlock()
}

// handleJoin connects to the requester's voice channel and starts capture
func (b *Bot) handleJoin(api discordAPI, guildID, textChannelID, requesterID string) {
	if _, exists := b.registry.Get(guildID); exists {
		b.send(api, textChannelID, msgAlreadyActive)
		return
	}

	vs, err := api.VoiceState(guildID, requesterID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		b.send(api, textChannelID, msgNotInVoice)
		return
	}

	vc, err := api.ChannelVoiceJoin(guildID, vs.ChannelID, true, false)
	if err != nil {
		b.logger.Error("Failed to join voice channel",
			slog.String("guild_id", guildID),
			slog.String("channel_id", vs.ChannelID),
			slog.String("error", err.Error()),
		)
		b.send(api, textChannelID, "Failed to join voice channel.")
		return
	}

	recordingID := uuid.New().String()
	buffer := audio.NewBuffer()
	coordinator := capture.NewCoordinator(capture.Config{
		SampleRate:     b.config.Audio.SampleRate,
		Channels:       b.config.Audio.Channels,
		SilenceTimeout: b.config.Audio.GetSilenceTimeout(),
	}, buffer, b.logger, b.metrics)

	sess := session.NewSession(guildID, vs.ChannelID, requesterID, recordingID, vc, buffer, coordinator)

	if err := b.registry.Add(sess); err != nil {
		// Lost a race with a concurrent join; back out without touching
		// the winning session.
		coordinator.Stop()
		if derr := vc.Disconnect(); derr != nil {
			b.logger.Warn("Failed to disconnect after join race",
				slog.String("guild_id", guildID),
				slog.String("error", derr.Error()),
			)
		}
		b.send(api, textChannelID, msgAlreadyActive)
		return
	}

	coordinator.Start(vc.OpusRecv)

	b.logger.Info("Started recording",
		slog.String("guild_id", guildID),
		slog.String("voice_channel_id", vs.ChannelID),
		slog.String("recording_id", recordingID),
	)

	b.send(api, textChannelID, msgJoined)
}

// handleLeave stops capture and runs the transcription pipeline
func (b *Bot) handleLeave(api discordAPI, guildID, textChannelID string) {
	sess, err := b.registry.Take(guildID)
	if err != nil {
		if errors.Is(err, session.ErrNotActive) {
			b.send(api, textChannelID, msgNotActive)
		}
		return
	}

	defer b.send(api, textChannelID, msgLeft)

	if err := sess.Close(); err != nil {
		b.logger.Warn("Error closing voice connection",
			slog.String("guild_id", guildID),
			slog.String("error", err.Error()),
		)
	}

	pcm := sess.Buffer.Drain()

	if b.metrics != nil {
		b.metrics.RecordSessionDestroyed(time.Since(sess.StartTime).Seconds(), len(pcm))
	}

	if len(pcm) == 0 {
		b.send(api, textChannelID, msgNoAudio)
		return
	}

	result, err := b.processRecording(context.Background(), sess.RecordingID, pcm)
	if err != nil {
		b.logger.Error("Recording pipeline failed",
			slog.String("guild_id", guildID),
			slog.String("recording_id", sess.RecordingID),
			slog.String("error", err.Error()),
		)
		b.send(api, textChannelID, msgNoSpeech)
		return
	}

	b.send(api, textChannelID, result)
}

// processRecording serializes PCM to a temporary WAV file, transcribes it,
// and summarizes the transcript. The temporary file is removed before
// returning, whatever the outcome.
func (b *Bot) processRecording(ctx context.Context, recordingID string, pcm []byte) (string, error) {
	wav, err := audio.EncodeWAV(pcm, b.config.Audio.SampleRate, b.config.Audio.Channels)
	if err != nil {
		return "", fmt.Errorf("failed to encode WAV: %w", err)
	}

	path := filepath.Join(b.config.Audio.TempDir, fmt.Sprintf("recording-%s.wav", recordingID))
	if err := os.WriteFile(path, wav, 0o600); err != nil {
		return "", fmt.Errorf("failed to write temporary recording: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			b.logger.Warn("Failed to remove temporary recording",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, b.config.Transcription.GetTimeoutDuration())
	defer cancel()

	start := time.Now()
	if b.metrics != nil {
		b.metrics.RecordTranscriptionRequest()
	}

	transcript, err := b.transcriber.TranscribeFile(tctx, path)
	if err != nil {
		if b.metrics != nil {
			b.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
		}
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	if b.metrics != nil {
		b.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())
	}

	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("transcription returned empty text")
	}

	sctx, cancel := context.WithTimeout(ctx, b.config.Summary.GetTimeoutDuration())
	defer cancel()

	result, err := b.summarizer.Summarize(sctx, transcript)
	if err != nil {
		// A summarization failure should not lose the recording; the raw
		// transcript is still worth posting.
		if b.metrics != nil {
			b.metrics.RecordSummaryFailure()
		}
		b.logger.Warn("Summarization failed, posting raw transcript",
			slog.String("recording_id", recordingID),
			slog.String("error", err.Error()),
		)
		return transcript, nil
	}

	if b.metrics != nil {
		if result.Skipped {
			b.metrics.RecordSummarySkipped()
		} else {
			b.metrics.RecordSummaryGenerated()
		}
	}

	return result.Text, nil
}

func (b *Bot) send(api discordAPI, channelID, content string) {
	if _, err := api.ChannelMessageSend(channelID, content); err != nil {
		b.logger.Warn("Failed to send message",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
	}
}
