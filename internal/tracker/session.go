package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// SessionState is the lifecycle state of one user's activity session
type SessionState int

const (
	StateIdle SessionState = iota
	StatePlaying
	StatePendingResolution
)

func (s SessionState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePendingResolution:
		return "pending-resolution"
	default:
		return "idle"
	}
}

type sessionKey struct {
	guildID string
	userID  string
}

type session struct {
	state          SessionState
	startedAt      time.Time
	voiceChannelID string
	streaming      bool
}

// SessionStore tracks one activity session per (guild, user). Signals for
// unregistered users never create a session. All methods are safe for
// concurrent use; no method performs I/O beyond the registration lookup.
type SessionStore struct {
	regs  RegistrationSource
	clock quartz.Clock

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

// NewSessionStore creates an empty session store
func NewSessionStore(regs RegistrationSource, clock quartz.Clock) *SessionStore {
	return &SessionStore{
		regs:     regs,
		clock:    clock,
		sessions: make(map[sessionKey]*session),
	}
}

// StartPlaying records a play-started signal. Starting while already
// playing refreshes the voice channel and streaming flag only.
func (s *SessionStore) StartPlaying(guildID, userID, voiceChannelID string, streaming bool) {
	if !s.registered(guildID, userID) {
		return
	}

	key := sessionKey{guildID, userID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok && sess.state != StateIdle {
		if sess.state == StatePlaying {
			sess.voiceChannelID = voiceChannelID
			sess.streaming = sess.streaming || streaming
		}
		return
	}

	s.sessions[key] = &session{
		state:          StatePlaying,
		startedAt:      s.clock.Now(),
		voiceChannelID: voiceChannelID,
		streaming:      streaming,
	}
	slog.Info("Session started", "guild", guildID, "user", userID, "voiceChannel", voiceChannelID)
}

// UpdateVoiceChannel refreshes the voice channel of an in-flight session.
// The most recent value at stop time is what groups the user.
func (s *SessionStore) UpdateVoiceChannel(guildID, userID, voiceChannelID string) {
	key := sessionKey{guildID, userID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok && sess.state == StatePlaying {
		sess.voiceChannelID = voiceChannelID
		slog.Debug("Session voice channel updated", "guild", guildID, "user", userID, "voiceChannel", voiceChannelID)
	}
}

// StopPlaying records a play-stopped signal. Returns a SessionEnded event
// if the user was playing, nil for duplicate or stray signals.
func (s *SessionStore) StopPlaying(guildID, userID string) *SessionEnded {
	key := sessionKey{guildID, userID}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok || sess.state != StatePlaying {
		return nil
	}

	sess.state = StatePendingResolution
	slog.Info("Session ended", "guild", guildID, "user", userID, "voiceChannel", sess.voiceChannelID)

	return &SessionEnded{
		GuildID:        guildID,
		UserID:         userID,
		VoiceChannelID: sess.voiceChannelID,
		Streaming:      sess.streaming,
		EndedAt:        s.clock.Now(),
	}
}

// Release returns a session to idle once its resolution cycle completes,
// whatever the outcome.
func (s *SessionStore) Release(guildID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{guildID, userID})
}

// State reports the current session state for a user
func (s *SessionStore) State(guildID, userID string) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionKey{guildID, userID}]; ok {
		return sess.state
	}
	return StateIdle
}

func (s *SessionStore) registered(guildID, userID string) bool {
	reg, err := s.regs.Registration(guildID, userID)
	if err != nil {
		slog.Error("Registration lookup failed", "guild", guildID, "user", userID, "error", err)
		return false
	}
	return reg != nil
}
