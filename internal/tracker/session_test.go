package tracker

import (
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreIgnoresUnregistered(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	store := NewSessionStore(newFakeRegs(), clock)

	store.StartPlaying("g1", "u1", "vc1", false)
	require.Equal(t, StateIdle, store.State("g1", "u1"))
	require.Nil(t, store.StopPlaying("g1", "u1"))
}

func TestSessionStoreLifecycle(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	regs := newFakeRegs()
	regs.add("g1", "u1", "Player", "NA1", "na")
	store := NewSessionStore(regs, clock)

	store.StartPlaying("g1", "u1", "vc1", false)
	require.Equal(t, StatePlaying, store.State("g1", "u1"))

	evt := store.StopPlaying("g1", "u1")
	require.NotNil(t, evt)
	require.Equal(t, "g1", evt.GuildID)
	require.Equal(t, "u1", evt.UserID)
	require.Equal(t, "vc1", evt.VoiceChannelID)
	require.Equal(t, StatePendingResolution, store.State("g1", "u1"))

	// Duplicate stop while pending is a no-op.
	require.Nil(t, store.StopPlaying("g1", "u1"))
	require.Equal(t, StatePendingResolution, store.State("g1", "u1"))

	store.Release("g1", "u1")
	require.Equal(t, StateIdle, store.State("g1", "u1"))
}

func TestSessionStoreStartWhilePlayingRefreshesVoiceChannel(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	regs := newFakeRegs()
	regs.add("g1", "u1", "Player", "NA1", "na")
	store := NewSessionStore(regs, clock)

	store.StartPlaying("g1", "u1", "vc1", false)
	store.StartPlaying("g1", "u1", "vc2", true)
	require.Equal(t, StatePlaying, store.State("g1", "u1"))

	evt := store.StopPlaying("g1", "u1")
	require.NotNil(t, evt)
	require.Equal(t, "vc2", evt.VoiceChannelID)
	require.True(t, evt.Streaming)
}

func TestSessionStoreVoiceChannelUpdateMidGame(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	regs := newFakeRegs()
	regs.add("g1", "u1", "Player", "NA1", "na")
	store := NewSessionStore(regs, clock)

	store.StartPlaying("g1", "u1", "vc1", false)
	store.UpdateVoiceChannel("g1", "u1", "vc9")

	evt := store.StopPlaying("g1", "u1")
	require.NotNil(t, evt)
	require.Equal(t, "vc9", evt.VoiceChannelID)

	// Updates after stop do not touch a pending session.
	store.UpdateVoiceChannel("g1", "u1", "vc3")
	require.Equal(t, StatePendingResolution, store.State("g1", "u1"))
}

func TestSessionStoreStartWhilePendingIsNoOp(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	regs := newFakeRegs()
	regs.add("g1", "u1", "Player", "NA1", "na")
	store := NewSessionStore(regs, clock)

	store.StartPlaying("g1", "u1", "vc1", false)
	require.NotNil(t, store.StopPlaying("g1", "u1"))

	// A member in pending resolution cannot emit a second SessionEnded.
	store.StartPlaying("g1", "u1", "vc1", false)
	require.Equal(t, StatePendingResolution, store.State("g1", "u1"))
	require.Nil(t, store.StopPlaying("g1", "u1"))
}

func TestSessionStoreTenantIsolation(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	regs := newFakeRegs()
	regs.add("g1", "u1", "Player", "NA1", "na")
	regs.add("g2", "u1", "Player", "EU1", "eu")
	store := NewSessionStore(regs, clock)

	store.StartPlaying("g1", "u1", "vc1", false)
	require.Equal(t, StatePlaying, store.State("g1", "u1"))
	require.Equal(t, StateIdle, store.State("g2", "u1"))

	store.StartPlaying("g2", "u1", "vc2", false)
	require.NotNil(t, store.StopPlaying("g1", "u1"))
	require.Equal(t, StatePlaying, store.State("g2", "u1"))
}
