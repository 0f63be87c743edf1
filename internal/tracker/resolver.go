package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/KuuCi/discord-postplant/internal/valorant"
)

// Resolver verifies candidate squads against authoritative match data and
// assembles one batch per distinct match.
type Resolver struct {
	regs       RegistrationSource
	fetcher    *Fetcher
	clock      quartz.Clock
	retryPause time.Duration
}

// NewResolver creates a resolver. retryPause is the fixed delay before the
// single re-try of members whose first fetch failed transiently.
func NewResolver(regs RegistrationSource, fetcher *Fetcher, clock quartz.Clock, retryPause time.Duration) *Resolver {
	return &Resolver{
		regs:       regs,
		fetcher:    fetcher,
		clock:      clock,
		retryPause: retryPause,
	}
}

type resolvedMember struct {
	evt   SessionEnded
	reg   *Registration
	match *valorant.Match
}

// Resolve fetches match data for every member, partitions members by match
// ID, and returns one batch per distinct match plus the members dropped
// this cycle. A single member's failure never blocks the rest.
func (r *Resolver) Resolve(ctx context.Context, guildID string, members []SessionEnded) ([]Batch, []Drop) {
	cycle := r.fetcher.NewCycle()
	cycleID := uuid.NewString()
	log := slog.With("cycle", cycleID, "guild", guildID)
	log.Info("Resolving group", "members", len(members))

	var verified []resolvedMember
	var transient []resolvedMember
	var drops []Drop

	for _, evt := range members {
		reg, err := r.regs.Registration(guildID, evt.UserID)
		if err != nil || reg == nil {
			if err != nil {
				log.Error("Registration lookup failed", "user", evt.UserID, "error", err)
			}
			drops = append(drops, Drop{UserID: evt.UserID, Reason: DropUnregistered})
			continue
		}

		match, err := cycle.Fetch(ctx, reg.Region, reg.RiotName, reg.RiotTag)
		if err != nil {
			if isTransient(err) {
				transient = append(transient, resolvedMember{evt: evt, reg: reg})
				continue
			}
			log.Info("Member set aside", "user", evt.UserID, "reason", dropReason(err))
			drops = append(drops, Drop{UserID: evt.UserID, Reason: dropReason(err)})
			continue
		}
		verified = append(verified, resolvedMember{evt: evt, reg: reg, match: match})
	}

	// One bounded re-try for members the provider could not serve yet.
	if len(transient) > 0 {
		log.Info("Retrying transient failures", "members", len(transient), "pause", r.retryPause)
		if err := r.sleep(ctx, r.retryPause); err == nil {
			for _, m := range transient {
				match, err := cycle.Fetch(ctx, m.reg.Region, m.reg.RiotName, m.reg.RiotTag)
				if err != nil {
					log.Warn("Dropping member after retry", "user", m.evt.UserID, "error", err)
					drops = append(drops, Drop{UserID: m.evt.UserID, Reason: dropReason(err)})
					continue
				}
				m.match = match
				verified = append(verified, m)
			}
		} else {
			for _, m := range transient {
				drops = append(drops, Drop{UserID: m.evt.UserID, Reason: DropUnavailable})
			}
		}
	}

	// Partition by match ID. Members who shared a voice channel but played
	// different matches (spectating, separate queues) split into their own
	// batches here.
	var order []string
	byMatch := make(map[string][]resolvedMember)
	for _, m := range verified {
		id := m.match.Metadata.MatchID
		if _, ok := byMatch[id]; !ok {
			order = append(order, id)
		}
		byMatch[id] = append(byMatch[id], m)
	}

	var batches []Batch
	for _, matchID := range order {
		group := byMatch[matchID]
		match := group[0].match

		batch := Batch{
			GuildID:   guildID,
			MatchID:   matchID,
			Map:       match.Metadata.Map,
			Mode:      match.Metadata.Mode,
			RedScore:  match.Teams.Red.RoundsWon,
			BlueScore: match.Teams.Blue.RoundsWon,
		}

		for _, m := range group {
			p := match.FindPlayer(m.reg.RiotName, m.reg.RiotTag)
			if p == nil {
				log.Warn("Member absent from match data", "user", m.evt.UserID, "match", matchID)
				drops = append(drops, Drop{UserID: m.evt.UserID, Reason: DropNotInMatch})
				continue
			}
			batch.Members = append(batch.Members, MemberStats{
				UserID:    m.evt.UserID,
				RiotName:  m.reg.RiotName,
				RiotTag:   m.reg.RiotTag,
				Streaming: m.evt.Streaming,
				Agent:     p.Character,
				Team:      p.Team,
				Won:       match.WinningTeam(p.Team),
				Kills:     p.Stats.Kills,
				Deaths:    p.Stats.Deaths,
				Assists:   p.Stats.Assists,
			})
		}

		if len(batch.Members) == 0 {
			continue
		}
		batches = append(batches, batch)
	}

	log.Info("Group resolved", "batches", len(batches), "drops", len(drops))
	return batches, drops
}

func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

func dropReason(err error) DropReason {
	switch {
	case errors.Is(err, ErrModeExcluded):
		return DropModeExcluded
	case errors.Is(err, ErrRateLimited):
		return DropRateLimited
	case errors.Is(err, ErrNotFound):
		return DropNotFound
	default:
		return DropUnavailable
	}
}

func (r *Resolver) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := r.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
