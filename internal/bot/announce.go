package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KuuCi/discord-postplant/internal/tracker"
	"github.com/KuuCi/discord-postplant/internal/valorant"
)

const (
	colorWin   = 0x2ECC71
	colorLoss  = 0xE74C3C
	colorMixed = 0xF1C40F // squad split across both teams
)

// Deliver implements tracker.Deliverer: posts one squad announcement to the
// guild's configured channel, then DMs each member a copy. A missing channel
// or a failed channel send is a terminal drop for the cycle.
func (b *Bot) Deliver(ctx context.Context, batch *tracker.Batch) error {
	settings, err := b.repo.GetGuildSettings(batch.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}
	if settings == nil || settings.AnnouncementChannelID == "" {
		return fmt.Errorf("no announcement channel configured for guild %s", batch.GuildID)
	}

	embed := buildSquadEmbed(batch)

	mentions := make([]string, len(batch.Members))
	for idx, m := range batch.Members {
		mentions[idx] = "<@" + m.UserID + ">"
	}

	_, err = b.session.ChannelMessageSendComplex(settings.AnnouncementChannelID, &discordgo.MessageSend{
		Content: strings.Join(mentions, " "),
		Embed:   embed,
	})
	if err != nil {
		return fmt.Errorf("failed to send announcement: %w", err)
	}

	// DM copies are best effort; closed DMs are common and not an error.
	for _, m := range batch.Members {
		ch, err := b.session.UserChannelCreate(m.UserID)
		if err != nil {
			slog.Debug("Could not open DM channel", "user", m.UserID, "error", err)
			continue
		}
		if _, err := b.session.ChannelMessageSendEmbed(ch.ID, embed); err != nil {
			slog.Debug("Could not DM announcement", "user", m.UserID, "error", err)
		}
	}

	return nil
}

// buildSquadEmbed renders one announcement for all members of a match
func buildSquadEmbed(batch *tracker.Batch) *discordgo.MessageEmbed {
	title := "Valorant Match Complete!"
	if len(batch.Members) > 1 {
		title = fmt.Sprintf("Squad Match Complete! (%d players)", len(batch.Members))
	}

	teams := make(map[string]bool)
	for _, m := range batch.Members {
		teams[strings.ToLower(m.Team)] = true
	}

	color := colorLoss
	switch {
	case len(teams) > 1:
		color = colorMixed
	case batch.Members[0].Won:
		color = colorWin
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Map", Value: batch.Map, Inline: true},
		{Name: "Mode", Value: batch.Mode, Inline: true},
		{Name: "Score", Value: fmt.Sprintf("🔴 %d - %d 🔵", batch.RedScore, batch.BlueScore), Inline: true},
		{Name: "​", Value: "**Player Stats**", Inline: false},
	}

	var riotIDs []string
	anyStreaming := false
	for _, m := range batch.Members {
		riotIDs = append(riotIDs, m.RiotName+"#"+m.RiotTag)
		if m.Streaming {
			anyStreaming = true
		}

		resultEmoji := "💀"
		if m.Won {
			resultEmoji = "🏆"
		}
		teamEmoji := "🔵"
		if strings.EqualFold(m.Team, "red") {
			teamEmoji = "🔴"
		}

		kda := float64(m.Kills+m.Assists) / float64(maxInt(m.Deaths, 1))
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: m.RiotName + "#" + m.RiotTag,
			Value: fmt.Sprintf("%s %s **%s** | K/D/A: **%d/%d/%d** (KDA: %.2f)",
				resultEmoji, teamEmoji, m.Agent, m.Kills, m.Deaths, m.Assists, kda),
			Inline: false,
		})
	}

	footer := strings.Join(riotIDs, ", ")
	if anyStreaming {
		footer += " 📺 Streaming"
	}

	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// buildLastMatchEmbed renders the /lastmatch response
func buildLastMatchEmbed(match *valorant.Match, p *valorant.Player) *discordgo.MessageEmbed {
	won := match.WinningTeam(p.Team)

	color := colorLoss
	result := "💀 Defeat"
	if won {
		color = colorWin
		result = "🏆 Victory"
	}

	score := fmt.Sprintf("%d-%d", match.Teams.Red.RoundsWon, match.Teams.Blue.RoundsWon)
	if !strings.EqualFold(p.Team, "red") {
		score = fmt.Sprintf("%d-%d", match.Teams.Blue.RoundsWon, match.Teams.Red.RoundsWon)
	}

	return &discordgo.MessageEmbed{
		Title: "Last Competitive Match",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Result", Value: result, Inline: true},
			{Name: "Score", Value: score, Inline: true},
			{Name: "Map", Value: match.Metadata.Map, Inline: true},
			{Name: "Agent", Value: p.Character, Inline: true},
			{
				Name:   "K/D/A",
				Value:  fmt.Sprintf("%d/%d/%d", p.Stats.Kills, p.Stats.Deaths, p.Stats.Assists),
				Inline: true,
			},
			{Name: "Mode", Value: match.Metadata.Mode, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Match ID: %s", match.Metadata.MatchID),
		},
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
