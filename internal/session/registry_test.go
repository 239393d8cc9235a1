package session

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/orpheas/discord-voice-summary/internal/audio"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeConn records whether Disconnect was called
type fakeConn struct {
	disconnected bool
	err          error
}

func (f *fakeConn) Disconnect() error {
	f.disconnected = true
	return f.err
}

func newTestSession(guildID string) (*Session, *fakeConn) {
	conn := &fakeConn{}
	sess := NewSession(guildID, "channel-1", "user-1", "rec-1", conn, audio.NewBuffer(), nil)
	return sess, conn
}

func TestRegistryAdd(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	sess, _ := newTestSession("guild-1")
	if err := registry.Add(sess); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", registry.Count())
	}

	got, exists := registry.Get("guild-1")
	if !exists {
		t.Fatal("Expected session to exist")
	}

	if got.ChannelID != "channel-1" {
		t.Errorf("Expected channel-1, got %s", got.ChannelID)
	}
}

func TestRegistryDoubleJoinRejected(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	first, firstConn := newTestSession("guild-1")
	if err := registry.Add(first); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	second, _ := newTestSession("guild-1")
	err := registry.Add(second)
	if !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive, got %v", err)
	}

	// The first session must be untouched
	if registry.Count() != 1 {
		t.Errorf("Expected 1 session after rejected double join, got %d", registry.Count())
	}

	got, _ := registry.Get("guild-1")
	if got != first {
		t.Error("Double join replaced the existing session")
	}

	if firstConn.disconnected {
		t.Error("Double join disconnected the existing session")
	}
}

func TestRegistryTakeAbsent(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	_, err := registry.Take("guild-missing")
	if !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected ErrNotActive, got %v", err)
	}
}

func TestRegistryTakeRemovesUnconditionally(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	sess, _ := newTestSession("guild-1")
	if err := registry.Add(sess); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	taken, err := registry.Take("guild-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	if taken != sess {
		t.Error("Take returned a different session")
	}

	// The entry is gone regardless of what the caller does with the
	// session afterwards, so downstream failures cannot leak it
	if registry.Count() != 0 {
		t.Errorf("Expected 0 sessions after Take, got %d", registry.Count())
	}

	if _, err := registry.Take("guild-1"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected ErrNotActive on second Take, got %v", err)
	}
}

func TestSessionCloseDisconnects(t *testing.T) {
	sess, conn := newTestSession("guild-1")

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !conn.disconnected {
		t.Error("Expected Close to disconnect the voice connection")
	}
}

func TestSessionClosePropagatesError(t *testing.T) {
	conn := &fakeConn{err: errors.New("gateway gone")}
	sess := NewSession("guild-1", "channel-1", "user-1", "rec-1", conn, audio.NewBuffer(), nil)

	if err := sess.Close(); err == nil {
		t.Error("Expected Close to propagate disconnect error")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	sess, _ := newTestSession("guild-1")
	sess.Buffer.Append([]byte{1, 2, 3, 4})
	if err := registry.Add(sess); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	infos := registry.Snapshot()
	if len(infos) != 1 {
		t.Fatalf("Expected 1 session in snapshot, got %d", len(infos))
	}

	if infos[0].GuildID != "guild-1" {
		t.Errorf("Expected guild-1, got %s", infos[0].GuildID)
	}

	if infos[0].Buffer.TotalBytes != 4 {
		t.Errorf("Expected 4 buffered bytes in snapshot, got %d", infos[0].Buffer.TotalBytes)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	sess1, conn1 := newTestSession("guild-1")
	sess2, conn2 := newTestSession("guild-2")
	if err := registry.Add(sess1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := registry.Add(sess2); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	registry.CloseAll()

	if registry.Count() != 0 {
		t.Errorf("Expected 0 sessions after CloseAll, got %d", registry.Count())
	}

	if !conn1.disconnected || !conn2.disconnected {
		t.Error("Expected CloseAll to disconnect all sessions")
	}
}
