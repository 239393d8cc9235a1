package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/orpheas/discord-voice-summary/internal/audio"
	"github.com/orpheas/discord-voice-summary/internal/config"
	"github.com/orpheas/discord-voice-summary/internal/session"
	"github.com/orpheas/discord-voice-summary/internal/summary"
)

type fakeAPI struct {
	mu         sync.Mutex
	messages   []string
	voiceState *discordgo.VoiceState
	vsErr      error
	vc         *discordgo.VoiceConnection
	joinErr    error
	joinCalls  int
}

func (f *fakeAPI) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeAPI) ChannelVoiceJoin(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls++
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return f.vc, nil
}

func (f *fakeAPI) VoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	if f.vsErr != nil {
		return nil, f.vsErr
	}
	return f.voiceState, nil
}

func (f *fakeAPI) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

type fakeTranscriber struct {
	text    string
	err     error
	mu      sync.Mutex
	gotPath string
}

func (f *fakeTranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.gotPath = path
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeSummarizer struct {
	result        *summary.Result
	err           error
	gotTranscript string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (*summary.Result, error) {
	f.gotTranscript = transcript
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeConn struct {
	disconnected bool
}

func (f *fakeConn) Disconnect() error {
	f.disconnected = true
	return nil
}

func newTestBot(t *testing.T, tr Transcriber, sum Summarizer) *Bot {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Discord: config.DiscordConfig{CommandPrefix: "!"},
		Audio: config.AudioConfig{
			SampleRate:     audio.SampleRate,
			Channels:       audio.Channels,
			SilenceTimeout: 100,
			TempDir:        t.TempDir(),
		},
		Transcription: config.TranscriptionConfig{Timeout: 5, MaxAttempts: 1},
		Summary:       config.SummaryConfig{Timeout: 5, MinWords: 30},
	}

	return &Bot{
		config:      cfg,
		registry:    session.NewRegistry(logger, nil),
		transcriber: tr,
		summarizer:  sum,
		logger:      logger,
	}
}

func addSession(t *testing.T, b *Bot, guildID string, pcm []byte) *fakeConn {
	t.Helper()

	conn := &fakeConn{}
	buffer := audio.NewBuffer()
	if len(pcm) > 0 {
		buffer.Append(pcm)
	}

	sess := session.NewSession(guildID, "voice-1", "user-1", "rec-1", conn, buffer, nil)
	if err := b.registry.Add(sess); err != nil {
		t.Fatalf("failed to add session: %v", err)
	}

	return conn
}

func TestHandleJoinNotInVoiceChannel(t *testing.T) {
	b := newTestBot(t, &fakeTranscriber{}, &fakeSummarizer{})
	api := &fakeAPI{vsErr: discordgo.ErrStateNotFound}

	b.handleJoin(api, "guild-1", "text-1", "user-1")

	msgs := api.sent()
	if len(msgs) != 1 || msgs[0] != msgNotInVoice {
		t.Errorf("expected [%q], got %v", msgNotInVoice, msgs)
	}
	if api.joinCalls != 0 {
		t.Errorf("expected no voice join attempt, got %d", api.joinCalls)
	}
	if b.registry.Count() != 0 {
		t.Errorf("expected no sessions, got %d", b.registry.Count())
	}
}

func TestHandleJoinAlreadyRecording(t *testing.T) {
	b := newTestBot(t, &fakeTranscriber{}, &fakeSummarizer{})
	conn := addSession(t, b, "guild-1", nil)

	api := &fakeAPI{voiceState: &discordgo.VoiceState{ChannelID: "voice-2"}}
	b.handleJoin(api, "guild-1", "text-1", "user-2")

	msgs := api.sent()
	if len(msgs) != 1 || msgs[0] != msgAlreadyActive {
		t.Errorf("expected [%q], got %v", msgAlreadyActive, msgs)
	}
	if conn.disconnected {
		t.Error("existing session must not be disconnected by a second join")
	}
	if b.registry.Count() != 1 {
		t.Errorf("expected existing session to remain, got count %d", b.registry.Count())
	}
}

func TestHandleJoinStartsSession(t *testing.T) {
	b := newTestBot(t, &fakeTranscriber{}, &fakeSummarizer{})
	api := &fakeAPI{
		voiceState: &discordgo.VoiceState{ChannelID: "voice-1"},
		vc:         &discordgo.VoiceConnection{OpusRecv: make(chan *discordgo.Packet)},
	}

	b.handleJoin(api, "guild-1", "text-1", "user-1")

	msgs := api.sent()
	if len(msgs) != 1 || msgs[0] != msgJoined {
		t.Fatalf("expected [%q], got %v", msgJoined, msgs)
	}

	sess, err := b.registry.Take("guild-1")
	if err != nil {
		t.Fatalf("expected session to be registered: %v", err)
	}
	if sess.ChannelID != "voice-1" {
		t.Errorf("expected voice channel 'voice-1', got %q", sess.ChannelID)
	}
	if sess.RecordingID == "" {
		t.Error("expected a recording ID to be assigned")
	}

	// Stop capture directly; the bare voice connection cannot disconnect.
	close(api.vc.OpusRecv)
	sess.Coordinator.Stop()
}

func TestHandleLeaveNotActive(t *testing.T) {
	b := newTestBot(t, &fakeTranscriber{}, &fakeSummarizer{})
	api := &fakeAPI{}

	b.handleLeave(api, "guild-1", "text-1")

	msgs := api.sent()
	if len(msgs) != 1 || msgs[0] != msgNotActive {
		t.Errorf("expected [%q], got %v", msgNotActive, msgs)
	}
}

func TestHandleLeaveEmptyRecording(t *testing.T) {
	b := newTestBot(t, &fakeTranscriber{}, &fakeSummarizer{})
	api := &fakeAPI{}
	conn := addSession(t, b, "guild-1", nil)

	b.handleLeave(api, "guild-1", "text-1")

	msgs := api.sent()
	want := []string{msgNoAudio, msgLeft}
	assertMessages(t, msgs, want)

	if !conn.disconnected {
		t.Error("expected voice connection to be disconnected")
	}
	if b.registry.Count() != 0 {
		t.Errorf("expected session to be removed, got count %d", b.registry.Count())
	}
}

func TestHandleLeavePostsSummary(t *testing.T) {
	tr := &fakeTranscriber{text: "a long transcript of the conversation"}
	sum := &fakeSummarizer{result: &summary.Result{Text: "the summary"}}
	b := newTestBot(t, tr, sum)
	api := &fakeAPI{}
	addSession(t, b, "guild-1", make([]byte, 9600))

	b.handleLeave(api, "guild-1", "text-1")

	assertMessages(t, api.sent(), []string{"the summary", msgLeft})

	if sum.gotTranscript != tr.text {
		t.Errorf("summarizer got transcript %q, want %q", sum.gotTranscript, tr.text)
	}
	assertTempDirEmpty(t, b)
}

func TestHandleLeaveTranscriberGetsValidWAV(t *testing.T) {
	pcm := make([]byte, 4800)
	tr := &verifyingTranscriber{t: t, wantPCMBytes: len(pcm)}
	b := newTestBot(t, tr, &fakeSummarizer{result: &summary.Result{Text: "ok"}})
	api := &fakeAPI{}
	addSession(t, b, "guild-1", pcm)

	b.handleLeave(api, "guild-1", "text-1")

	if !tr.called {
		t.Fatal("transcriber was not called")
	}
}

// verifyingTranscriber checks the WAV file on disk before the pipeline
// deletes it
type verifyingTranscriber struct {
	t            *testing.T
	wantPCMBytes int
	called       bool
}

func (v *verifyingTranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	v.called = true

	data, err := os.ReadFile(path)
	if err != nil {
		v.t.Errorf("failed to read recording file: %v", err)
		return "", err
	}

	if len(data) != audio.HeaderSize+v.wantPCMBytes {
		v.t.Errorf("expected file size %d, got %d", audio.HeaderSize+v.wantPCMBytes, len(data))
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		v.t.Errorf("invalid WAV header: %v", err)
		return "", err
	}
	if info.SampleRate != audio.SampleRate || info.Channels != audio.Channels {
		v.t.Errorf("unexpected WAV format: %+v", info)
	}

	return "transcript", nil
}

func TestHandleLeaveTranscriptionFailure(t *testing.T) {
	tr := &fakeTranscriber{err: fmt.Errorf("upstream unavailable")}
	b := newTestBot(t, tr, &fakeSummarizer{})
	api := &fakeAPI{}
	addSession(t, b, "guild-1", make([]byte, 9600))

	b.handleLeave(api, "guild-1", "text-1")

	assertMessages(t, api.sent(), []string{msgNoSpeech, msgLeft})
	assertTempDirEmpty(t, b)
}

func TestHandleLeaveSummarizerFailurePostsTranscript(t *testing.T) {
	tr := &fakeTranscriber{text: "the raw transcript"}
	sum := &fakeSummarizer{err: fmt.Errorf("model overloaded")}
	b := newTestBot(t, tr, sum)
	api := &fakeAPI{}
	addSession(t, b, "guild-1", make([]byte, 9600))

	b.handleLeave(api, "guild-1", "text-1")

	assertMessages(t, api.sent(), []string{"the raw transcript", msgLeft})
}

func TestHandleLeaveSkippedSummaryPostsTranscript(t *testing.T) {
	tr := &fakeTranscriber{text: "short transcript"}
	sum := &fakeSummarizer{result: &summary.Result{Text: "short transcript", Skipped: true}}
	b := newTestBot(t, tr, sum)
	api := &fakeAPI{}
	addSession(t, b, "guild-1", make([]byte, 9600))

	b.handleLeave(api, "guild-1", "text-1")

	assertMessages(t, api.sent(), []string{"short transcript", msgLeft})
}

func TestHandleMessageRouting(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		author   *discordgo.User
		guildID  string
		wantMsgs int
	}{
		{
			name:     "leave without session",
			content:  "!leave",
			author:   &discordgo.User{ID: "user-1"},
			guildID:  "guild-1",
			wantMsgs: 1,
		},
		{
			name:     "wrong prefix ignored",
			content:  "?leave",
			author:   &discordgo.User{ID: "user-1"},
			guildID:  "guild-1",
			wantMsgs: 0,
		},
		{
			name:     "unknown command ignored",
			content:  "!dance",
			author:   &discordgo.User{ID: "user-1"},
			guildID:  "guild-1",
			wantMsgs: 0,
		},
		{
			name:     "bot author ignored",
			content:  "!leave",
			author:   &discordgo.User{ID: "bot-1", Bot: true},
			guildID:  "guild-1",
			wantMsgs: 0,
		},
		{
			name:     "direct message ignored",
			content:  "!leave",
			author:   &discordgo.User{ID: "user-1"},
			guildID:  "",
			wantMsgs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBot(t, &fakeTranscriber{}, &fakeSummarizer{})
			api := &fakeAPI{}

			b.handleMessage(api, &discordgo.MessageCreate{
				Message: &discordgo.Message{
					Content:   tt.content,
					Author:    tt.author,
					GuildID:   tt.guildID,
					ChannelID: "text-1",
				},
			})

			if got := len(api.sent()); got != tt.wantMsgs {
				t.Errorf("expected %d messages, got %d: %v", tt.wantMsgs, got, api.sent())
			}
		})
	}
}

func assertMessages(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected messages %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func assertTempDirEmpty(t *testing.T, b *Bot) {
	t.Helper()

	entries, err := os.ReadDir(b.config.Audio.TempDir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("temporary file was not removed: %s", filepath.Join(b.config.Audio.TempDir, e.Name()))
	}
}
