package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/orpheas/discord-voice-summary/internal/audio"
	"github.com/orpheas/discord-voice-summary/internal/capture"
	"github.com/orpheas/discord-voice-summary/internal/metrics"
)

var (
	// ErrAlreadyActive is returned when a guild already has a session.
	// A second join is rejected rather than replacing the entry, which
	// would orphan the existing voice connection.
	ErrAlreadyActive = errors.New("session already active for this guild")

	// ErrNotActive is returned when no session exists for a guild
	ErrNotActive = errors.New("no active session for this guild")
)

// VoiceConnection is the subset of the Discord voice connection a session
// owns. The session has exclusive ownership; closing the session closes
// the connection.
type VoiceConnection interface {
	Disconnect() error
}

// Session represents one join-to-leave recording lifecycle in a guild
type Session struct {
	GuildID     string
	ChannelID   string
	RequesterID string
	RecordingID string
	StartTime   time.Time

	Buffer      *audio.Buffer
	Coordinator *capture.Coordinator

	conn VoiceConnection
}

// NewSession creates a session owning the given voice connection
func NewSession(guildID, channelID, requesterID, recordingID string, conn VoiceConnection,
	buffer *audio.Buffer, coordinator *capture.Coordinator) *Session {

	return &Session{
		GuildID:     guildID,
		ChannelID:   channelID,
		RequesterID: requesterID,
		RecordingID: recordingID,
		StartTime:   time.Now(),
		Buffer:      buffer,
		Coordinator: coordinator,
		conn:        conn,
	}
}

// Close stops capture and disconnects the voice connection
func (s *Session) Close() error {
	if s.Coordinator != nil {
		s.Coordinator.Stop()
	}
	if s.conn != nil {
		return s.conn.Disconnect()
	}
	return nil
}

// Info is a point-in-time view of a session for the monitoring API
type Info struct {
	GuildID         string            `json:"guild_id"`
	ChannelID       string            `json:"channel_id"`
	RequesterID     string            `json:"requester_id"`
	RecordingID     string            `json:"recording_id"`
	StartTime       time.Time         `json:"start_time"`
	DurationSeconds float64           `json:"duration_seconds"`
	Buffer          audio.BufferStats `json:"buffer"`
	Capture         capture.Stats     `json:"capture"`
}

// Registry maps guild IDs to their active recording sessions
type Registry struct {
	sessions map[string]*Session
	logger   *slog.Logger
	metrics  *metrics.Metrics
	mu       sync.RWMutex
}

// NewRegistry creates an empty session registry
func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
		metrics:  m,
	}
}

// Add registers a session for its guild. It fails with ErrAlreadyActive
// if the guild already has one; the existing session is left untouched.
func (r *Registry) Add(sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.GuildID]; exists {
		return ErrAlreadyActive
	}

	r.sessions[sess.GuildID] = sess

	if r.metrics != nil {
		r.metrics.RecordSessionCreated()
		r.metrics.SetActiveSessions(len(r.sessions))
	}

	r.logger.Info("Recording session created",
		slog.String("guild_id", sess.GuildID),
		slog.String("channel_id", sess.ChannelID),
		slog.String("recording_id", sess.RecordingID),
	)

	return nil
}

// Get returns the active session for a guild, if any
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[guildID]
	return sess, exists
}

// Take removes and returns the session for a guild. Removal happens before
// any downstream processing, so a failing pipeline can never leak an entry.
func (r *Registry) Take(guildID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[guildID]
	if !exists {
		return nil, ErrNotActive
	}

	delete(r.sessions, guildID)

	if r.metrics != nil {
		r.metrics.SetActiveSessions(len(r.sessions))
	}

	r.logger.Info("Recording session removed",
		slog.String("guild_id", guildID),
		slog.String("recording_id", sess.RecordingID),
		slog.Duration("duration", time.Since(sess.StartTime)),
	)

	return sess, nil
}

// Count returns the number of active sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns monitoring info for all active sessions
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		info := Info{
			GuildID:         sess.GuildID,
			ChannelID:       sess.ChannelID,
			RequesterID:     sess.RequesterID,
			RecordingID:     sess.RecordingID,
			StartTime:       sess.StartTime,
			DurationSeconds: time.Since(sess.StartTime).Seconds(),
			Buffer:          sess.Buffer.Stats(),
		}
		if sess.Coordinator != nil {
			info.Capture = sess.Coordinator.GetStats()
		}
		infos = append(infos, info)
	}

	return infos
}

// CloseAll tears down every active session, used during shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.Close(); err != nil {
			r.logger.Warn("Error closing session during shutdown",
				slog.String("guild_id", sess.GuildID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.metrics != nil {
		r.metrics.SetActiveSessions(0)
	}
}
