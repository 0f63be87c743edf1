package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// ResolveFunc receives a finalized group for resolution. It is invoked from
// the expired window's timer goroutine; no member can be added after hand-off.
type ResolveFunc func(guildID string, members []SessionEnded)

type groupKey struct {
	guildID string
	key     string // "vc:<channel>" for voice groups, "solo:<user>" otherwise
}

type pendingGroup struct {
	members  []SessionEnded
	firstEnd time.Time
	deadline time.Time
	timer    *quartz.Timer
}

// Collector debounces SessionEnded events into candidate squads. Members
// sharing a voice channel accumulate behind one window; each new member
// pushes the deadline forward by the wait time, capped at maxWait past the
// first member so a refilling channel cannot stall the group forever.
type Collector struct {
	clock   quartz.Clock
	wait    time.Duration
	maxWait time.Duration
	resolve ResolveFunc

	mu     sync.Mutex
	groups map[groupKey]*pendingGroup
	closed bool
	wg     sync.WaitGroup
}

// NewCollector creates a collector. wait is the debounce window extension
// per member; maxWait bounds the total window from the first member's end.
func NewCollector(clock quartz.Clock, wait, maxWait time.Duration, resolve ResolveFunc) *Collector {
	return &Collector{
		clock:   clock,
		wait:    wait,
		maxWait: maxWait,
		resolve: resolve,
		groups:  make(map[groupKey]*pendingGroup),
	}
}

// Add queues a session-ended event into its group, creating the group and
// its window timer on first sight.
func (c *Collector) Add(evt SessionEnded) {
	key := groupKey{guildID: evt.GuildID, key: "solo:" + evt.UserID}
	if evt.VoiceChannelID != "" {
		key.key = "vc:" + evt.VoiceChannelID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		slog.Warn("Collector closed, dropping event", "guild", evt.GuildID, "user", evt.UserID)
		return
	}

	g, ok := c.groups[key]
	if !ok {
		g = &pendingGroup{firstEnd: c.clock.Now()}
		g.deadline = g.firstEnd.Add(c.wait)
		g.members = append(g.members, evt)
		c.groups[key] = g
		g.timer = c.clock.AfterFunc(c.wait, func() {
			c.fire(key)
		})
		slog.Info("Group window opened", "guild", evt.GuildID, "key", key.key, "user", evt.UserID)
		return
	}

	g.members = append(g.members, evt)

	// Extend the window, bounded by the cap from the first member.
	deadline := c.clock.Now().Add(c.wait)
	if limit := g.firstEnd.Add(c.maxWait); deadline.After(limit) {
		deadline = limit
	}
	d := c.clock.Until(deadline)
	if d < 0 {
		d = 0
	}
	g.deadline = deadline
	g.timer.Reset(d)
	slog.Info("Group window extended",
		"guild", evt.GuildID, "key", key.key, "user", evt.UserID, "members", len(g.members))
}

// fire removes the expired group and hands its members to the resolver.
// Removal happens under the lock, so a concurrent Add for the same key
// starts a fresh group rather than joining a resolution in flight. A fire
// that raced an extension re-arms for the remaining window; one that raced
// the group's resolution finds no group and is a no-op.
func (c *Collector) fire(key groupKey) {
	c.mu.Lock()
	g, ok := c.groups[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	if d := c.clock.Until(g.deadline); d > 0 {
		g.timer.Reset(d)
		c.mu.Unlock()
		return
	}
	delete(c.groups, key)
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	slog.Info("Group window expired", "guild", key.guildID, "key", key.key, "members", len(g.members))
	c.resolve(key.guildID, g.members)
}

// Pending reports the number of open group windows
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

// Close stops all pending windows and waits for in-flight resolutions.
// Groups still waiting are lost, matching the accepted restart semantics.
func (c *Collector) Close() {
	c.mu.Lock()
	c.closed = true
	for key, g := range c.groups {
		g.timer.Stop()
		delete(c.groups, key)
		slog.Warn("Discarding pending group on shutdown",
			"guild", key.guildID, "key", key.key, "members", len(g.members))
	}
	c.mu.Unlock()

	c.wg.Wait()
}
