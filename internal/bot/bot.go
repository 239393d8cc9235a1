package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/orpheas/discord-voice-summary/internal/config"
	"github.com/orpheas/discord-voice-summary/internal/metrics"
	"github.com/orpheas/discord-voice-summary/internal/session"
	"github.com/orpheas/discord-voice-summary/internal/summary"
)

// Transcriber converts a recorded audio file to text
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// Summarizer condenses a transcript into a short summary
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (*summary.Result, error)
}

// discordAPI is the subset of the Discord session the command handlers use
type discordAPI interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelVoiceJoin(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

// sessionAPI adapts *discordgo.Session to discordAPI
type sessionAPI struct {
	*discordgo.Session
}

func (s sessionAPI) VoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	return s.Session.State.VoiceState(guildID, userID)
}

// Bot connects to Discord and serves the recording commands
type Bot struct {
	session     *discordgo.Session
	config      *config.Config
	registry    *session.Registry
	transcriber Transcriber
	summarizer  Summarizer
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu              sync.RWMutex
	commandsHandled uint64
}

// New creates a bot with a configured Discord session. The session is not
// opened until Start is called.
func New(cfg *config.Config, token string, registry *session.Registry,
	transcriber Transcriber, summarizer Summarizer,
	logger *slog.Logger, m *metrics.Metrics) (*Bot, error) {

	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:     dg,
		config:      cfg,
		registry:    registry,
		transcriber: transcriber,
		summarizer:  summarizer,
		logger:      logger,
		metrics:     m,
	}

	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(sessionAPI{s}, m)
	})

	return b, nil
}

// Start opens the gateway connection
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	b.logger.Info("Discord bot started",
		slog.String("command_prefix", b.config.Discord.CommandPrefix),
	)

	return nil
}

// Stop tears down all active sessions and closes the gateway connection
func (b *Bot) Stop() error {
	b.registry.CloseAll()

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	b.logger.Info("Discord bot stopped")
	return nil
}

// Stats contains bot counters for the monitoring API
type Stats struct {
	CommandsHandled uint64 `json:"commands_handled"`
	ActiveSessions  int    `json:"active_sessions"`
}

// GetStats returns current bot statistics
func (b *Bot) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		CommandsHandled: b.commandsHandled,
		ActiveSessions:  b.registry.Count(),
	}
}
