package tracker

import (
	"context"
	"fmt"
	"log/slog"
)

// Ledger records the last announced match per (guild, user). Implementations
// must keep guilds fully isolated from one another.
type Ledger interface {
	LastAnnounced(guildID, userID string) (string, error)
	SetLastAnnounced(guildID, userID, matchID string) error
}

// Deliverer posts a finished batch to its guild. A returned error is a
// terminal drop for the cycle; the core does not re-deliver.
type Deliverer interface {
	Deliver(ctx context.Context, batch *Batch) error
}

// Outcome is the result of publishing a batch
type Outcome int

const (
	Delivered Outcome = iota
	Suppressed
)

// Publisher guarantees at-most-one announcement per (guild, match, user).
type Publisher struct {
	ledger  Ledger
	deliver Deliverer
}

// NewPublisher creates a publisher over the given ledger and deliverer
func NewPublisher(ledger Ledger, deliver Deliverer) *Publisher {
	return &Publisher{ledger: ledger, deliver: deliver}
}

// Publish filters members already announced for this match, delivers the
// remainder, and only then records the match in the ledger. Writing the
// ledger last keeps delivery at-most-once even when a resolution is retried.
func (p *Publisher) Publish(ctx context.Context, batch *Batch) (Outcome, error) {
	kept := batch.Members[:0:0]
	for _, m := range batch.Members {
		last, err := p.ledger.LastAnnounced(batch.GuildID, m.UserID)
		if err != nil {
			return Suppressed, fmt.Errorf("ledger lookup for %s: %w", m.UserID, err)
		}
		if last == batch.MatchID {
			slog.Info("Suppressing already announced member",
				"guild", batch.GuildID, "user", m.UserID, "match", batch.MatchID)
			continue
		}
		kept = append(kept, m)
	}

	if len(kept) == 0 {
		slog.Info("Batch fully suppressed", "guild", batch.GuildID, "match", batch.MatchID)
		return Suppressed, nil
	}
	batch.Members = kept

	if err := p.deliver.Deliver(ctx, batch); err != nil {
		return Suppressed, fmt.Errorf("delivery failed: %w", err)
	}

	for _, m := range batch.Members {
		if err := p.ledger.SetLastAnnounced(batch.GuildID, m.UserID, batch.MatchID); err != nil {
			slog.Error("Failed to update announcement ledger",
				"guild", batch.GuildID, "user", m.UserID, "match", batch.MatchID, "error", err)
		}
	}

	slog.Info("Batch delivered",
		"guild", batch.GuildID, "match", batch.MatchID, "members", len(batch.Members))
	return Delivered, nil
}
