package tracker

import "time"

// SignalKind distinguishes activity start and stop signals
type SignalKind int

const (
	SignalStarted SignalKind = iota
	SignalStopped
)

// SessionEnded is emitted when a registered user's play session ends.
// VoiceChannelID is the channel the user was in at stop time, or empty.
type SessionEnded struct {
	GuildID        string
	UserID         string
	VoiceChannelID string
	Streaming      bool
	EndedAt        time.Time
}

// Registration holds the Riot account a user registered for a guild
type Registration struct {
	RiotName string
	RiotTag  string
	Region   string
}

// RegistrationSource resolves a user's registration within a guild.
// A nil registration with nil error means the user is not registered.
type RegistrationSource interface {
	Registration(guildID, userID string) (*Registration, error)
}

// MemberStats is one squad member's slice of a match result
type MemberStats struct {
	UserID    string
	RiotName  string
	RiotTag   string
	Streaming bool
	Agent     string
	Team      string
	Won       bool
	Kills     int
	Deaths    int
	Assists   int
}

// Batch is one announcement: every verified member of a single match
// within a single guild. Consumed once by the deliverer, then discarded.
type Batch struct {
	GuildID   string
	MatchID   string
	Map       string
	Mode      string
	RedScore  int
	BlueScore int
	Members   []MemberStats
}

// DropReason explains why a member received no announcement this cycle
type DropReason string

const (
	DropUnregistered DropReason = "unregistered"
	DropNotFound     DropReason = "match not found"
	DropRateLimited  DropReason = "rate limited"
	DropUnavailable  DropReason = "provider unavailable"
	DropModeExcluded DropReason = "mode excluded"
	DropNotInMatch   DropReason = "absent from match data"
)

// Drop records a member excluded from all batches in a resolution cycle
type Drop struct {
	UserID string
	Reason DropReason
}
