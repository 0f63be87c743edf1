package tracker

import (
	"context"
	"sync"

	"github.com/KuuCi/discord-postplant/internal/valorant"
)

// fakeRegs is an in-memory RegistrationSource keyed guild:user
type fakeRegs struct {
	regs map[string]*Registration
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{regs: make(map[string]*Registration)}
}

func (f *fakeRegs) add(guildID, userID, name, tag, region string) {
	f.regs[guildID+":"+userID] = &Registration{RiotName: name, RiotTag: tag, Region: region}
}

func (f *fakeRegs) Registration(guildID, userID string) (*Registration, error) {
	return f.regs[guildID+":"+userID], nil
}

// fakeSource scripts per-account responses. Each call to LastMatch consumes
// the next scripted response for that account; the final response repeats.
type fakeSource struct {
	mu        sync.Mutex
	responses map[string][]sourceResponse
	calls     map[string]int
}

type sourceResponse struct {
	match *valorant.Match
	err   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		responses: make(map[string][]sourceResponse),
		calls:     make(map[string]int),
	}
}

func (f *fakeSource) script(name, tag string, responses ...sourceResponse) {
	f.responses[name+"#"+tag] = responses
}

func (f *fakeSource) callCount(name, tag string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name+"#"+tag]
}

func (f *fakeSource) LastMatch(ctx context.Context, region, name, tag string) (*valorant.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := name + "#" + tag
	script := f.responses[key]
	idx := f.calls[key]
	f.calls[key]++

	if len(script) == 0 {
		return nil, valorant.ErrNoMatches
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return script[idx].match, script[idx].err
}

// compMatch builds a competitive match containing the given players
func compMatch(matchID string, players ...valorant.Player) *valorant.Match {
	return &valorant.Match{
		Metadata: valorant.MatchMetadata{
			MatchID: matchID,
			Map:     "Ascent",
			Mode:    "Competitive",
		},
		Teams: valorant.MatchTeams{
			Red:  valorant.Team{HasWon: true, RoundsWon: 13},
			Blue: valorant.Team{HasWon: false, RoundsWon: 7},
		},
		Players: valorant.MatchPlayers{AllPlayers: players},
	}
}

func redPlayer(name, tag string) valorant.Player {
	return valorant.Player{
		Name:      name,
		Tag:       tag,
		Team:      "Red",
		Character: "Jett",
		Stats:     valorant.PlayerStats{Kills: 20, Deaths: 10, Assists: 5},
	}
}

// fakeLedger is an in-memory tracker.Ledger
type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]string)}
}

func (f *fakeLedger) LastAnnounced(guildID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[guildID+":"+userID], nil
}

func (f *fakeLedger) SetLastAnnounced(guildID, userID, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[guildID+":"+userID] = matchID
	return nil
}

// fakeDeliverer records delivered batches and can fail on demand
type fakeDeliverer struct {
	mu      sync.Mutex
	batches []Batch
	failErr error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, batch *Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.batches = append(f.batches, *batch)
	return nil
}

func (f *fakeDeliverer) delivered() []Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Batch, len(f.batches))
	copy(out, f.batches)
	return out
}
