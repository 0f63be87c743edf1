package storage

import "time"

// Registration links a Discord user to a Riot account within one guild.
// Users register per guild; the same user may hold different registrations
// in different guilds.
type Registration struct {
	GuildID   string
	UserID    string
	RiotName  string
	RiotTag   string
	Region    string
	CreatedAt time.Time
}

// RiotID returns the display form Name#Tag
func (r *Registration) RiotID() string {
	return r.RiotName + "#" + r.RiotTag
}

// GuildSettings stores per-guild configuration
type GuildSettings struct {
	GuildID               string
	AnnouncementChannelID string
	CreatedAt             time.Time
}
