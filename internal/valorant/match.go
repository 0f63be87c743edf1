package valorant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoMatches indicates the account exists but has no recent match history
var ErrNoMatches = errors.New("no recent matches")

// Match represents a completed match from the v3 matches endpoint
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Players  MatchPlayers  `json:"players"`
	Teams    MatchTeams    `json:"teams"`
}

// MatchMetadata contains match-level information
type MatchMetadata struct {
	MatchID      string `json:"matchid"`
	Map          string `json:"map"`
	Mode         string `json:"mode"`
	GameStart    int64  `json:"game_start"`
	GameLength   int64  `json:"game_length"` // in seconds
	RoundsPlayed int    `json:"rounds_played"`
	Cluster      string `json:"cluster"`
}

// MatchPlayers holds the per-player entries of a match
type MatchPlayers struct {
	AllPlayers []Player `json:"all_players"`
}

// MatchTeams holds the two team results
type MatchTeams struct {
	Red  Team `json:"red"`
	Blue Team `json:"blue"`
}

// Team represents one side's result
type Team struct {
	HasWon    bool `json:"has_won"`
	RoundsWon int  `json:"rounds_won"`
}

// Player represents one player's entry in a match
type Player struct {
	PUUID     string      `json:"puuid"`
	Name      string      `json:"name"`
	Tag       string      `json:"tag"`
	Team      string      `json:"team"` // "Red" or "Blue"
	Character string      `json:"character"`
	Stats     PlayerStats `json:"stats"`
}

// PlayerStats holds a player's combat statistics
type PlayerStats struct {
	Score   int `json:"score"`
	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`
}

type matchesResponse struct {
	Status int     `json:"status"`
	Data   []Match `json:"data"`
}

// GetMatches retrieves recent matches for a player, newest first
func (c *Client) GetMatches(ctx context.Context, region, name, tag string) ([]Match, error) {
	path := fmt.Sprintf("/valorant/v3/matches/%s/%s/%s",
		url.PathEscape(region), url.PathEscape(name), url.PathEscape(tag))

	var resp matchesResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to get matches for %s#%s: %w", name, tag, err)
	}

	return resp.Data, nil
}

// LastMatch retrieves the most recent match for a player
func (c *Client) LastMatch(ctx context.Context, region, name, tag string) (*Match, error) {
	matches, err := c.GetMatches(ctx, region, name, tag)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}
	return &matches[0], nil
}

// FindPlayer finds a player's entry in the match by Riot name and tag.
// Comparison is case-insensitive, matching how the API capitalizes names.
func (m *Match) FindPlayer(name, tag string) *Player {
	for i := range m.Players.AllPlayers {
		p := &m.Players.AllPlayers[i]
		if strings.EqualFold(p.Name, name) && strings.EqualFold(p.Tag, tag) {
			return p
		}
	}
	return nil
}

// WinningTeam reports whether the given team ("Red" or "Blue") won
func (m *Match) WinningTeam(team string) bool {
	if strings.EqualFold(team, "red") {
		return m.Teams.Red.HasWon
	}
	return m.Teams.Blue.HasWon
}

// IsCompetitive reports whether the match was played in Competitive mode
func (m *Match) IsCompetitive() bool {
	return strings.EqualFold(m.Metadata.Mode, "competitive")
}
