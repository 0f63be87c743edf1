// Package tracker implements the session correlation core: it turns raw
// per-user activity signals into verified squad announcements, one per
// distinct match per guild.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/quartz"
)

// Config tunes the correlation pipeline
type Config struct {
	// GroupWait is the debounce window for squad assembly.
	GroupWait time.Duration
	// MaxGroupWait bounds total window extension from the first member.
	MaxGroupWait time.Duration
	// RetryPause is the fixed delay before re-trying transient fetch
	// failures within a cycle.
	RetryPause time.Duration
	// Fetcher tunes match retrieval.
	Fetcher FetcherConfig
}

// DefaultConfig returns the production tunables
func DefaultConfig() Config {
	return Config{
		GroupWait:    30 * time.Second,
		MaxGroupWait: 2 * time.Minute,
		RetryPause:   10 * time.Second,
		Fetcher: FetcherConfig{
			SettleWait:      time.Minute,
			MaxAttempts:     4,
			InitialBackoff:  2 * time.Second,
			MaxBackoff:      30 * time.Second,
			CompetitiveOnly: true,
		},
	}
}

// Tracker wires the pipeline: session state machine, group collector,
// resolver and publisher. All per-user mutations are serialized through the
// session store; resolution runs on the expired window's goroutine.
type Tracker struct {
	sessions  *SessionStore
	collector *Collector
	resolver  *Resolver
	publisher *Publisher

	ctx    context.Context
	cancel context.CancelFunc
}

// New assembles a tracker from its collaborators
func New(cfg Config, regs RegistrationSource, source MatchSource, ledger Ledger, deliver Deliverer, clock quartz.Clock) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())

	t := &Tracker{
		sessions:  NewSessionStore(regs, clock),
		resolver:  NewResolver(regs, NewFetcher(source, clock, cfg.Fetcher), clock, cfg.RetryPause),
		publisher: NewPublisher(ledger, deliver),
		ctx:       ctx,
		cancel:    cancel,
	}
	t.collector = NewCollector(clock, cfg.GroupWait, cfg.MaxGroupWait, t.resolveGroup)
	return t
}

// HandleSignal processes one activity signal for a user. Signals for a
// single user must arrive in order; signals for different users may not.
func (t *Tracker) HandleSignal(guildID, userID string, kind SignalKind, voiceChannelID string, streaming bool) {
	switch kind {
	case SignalStarted:
		t.sessions.StartPlaying(guildID, userID, voiceChannelID, streaming)
	case SignalStopped:
		if evt := t.sessions.StopPlaying(guildID, userID); evt != nil {
			t.collector.Add(*evt)
		}
	}
}

// HandleVoiceUpdate refreshes the voice channel of an in-flight session
func (t *Tracker) HandleVoiceUpdate(guildID, userID, voiceChannelID string) {
	t.sessions.UpdateVoiceChannel(guildID, userID, voiceChannelID)
}

// SessionState reports a user's current session state
func (t *Tracker) SessionState(guildID, userID string) SessionState {
	return t.sessions.State(guildID, userID)
}

// resolveGroup runs one resolution cycle for an expired group. Every member
// returns to idle when the cycle finishes, whatever its outcome.
func (t *Tracker) resolveGroup(guildID string, members []SessionEnded) {
	defer func() {
		for _, m := range members {
			t.sessions.Release(m.GuildID, m.UserID)
		}
	}()

	batches, drops := t.resolver.Resolve(t.ctx, guildID, members)
	for _, d := range drops {
		slog.Info("Member dropped this cycle", "guild", guildID, "user", d.UserID, "reason", d.Reason)
	}

	for i := range batches {
		outcome, err := t.publisher.Publish(t.ctx, &batches[i])
		if err != nil {
			slog.Error("Failed to publish batch",
				"guild", guildID, "match", batches[i].MatchID, "error", err)
			continue
		}
		if outcome == Suppressed {
			slog.Debug("Batch suppressed", "guild", guildID, "match", batches[i].MatchID)
		}
	}
}

// Close stops the tracker. Pending group windows are discarded and
// in-flight resolution waits are cancelled.
func (t *Tracker) Close() {
	t.cancel()
	t.collector.Close()
}
