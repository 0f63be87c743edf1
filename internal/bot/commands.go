package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KuuCi/discord-postplant/internal/storage"
	"github.com/KuuCi/discord-postplant/internal/valorant"
)

var regionChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "North America", Value: "na"},
	{Name: "Europe", Value: "eu"},
	{Name: "Asia Pacific", Value: "ap"},
	{Name: "Korea", Value: "kr"},
}

// Slash command definitions. Every command reads i.Member and guild state,
// so DM invocation is disabled across the board.
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	dmPermission := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         "register",
			Description:  "Register your Riot ID to track Valorant games in this server",
			DMPermission: &dmPermission,
			Options:      []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "riot_name",
					Description: "Your Riot username (e.g., PlayerName)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "riot_tag",
					Description: "Your Riot tag (e.g., NA1)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "region",
					Description: "Your region",
					Required:    false,
					Choices:     regionChoices,
				},
			},
		},
		{
			Name:         "unregister",
			Description:  "Stop tracking your Valorant games in this server",
			DMPermission: &dmPermission,
		},
		{
			Name:         "list",
			Description:  "List all registered players in this server",
			DMPermission: &dmPermission,
		},
		{
			Name:         "setchannel",
			Description:  "Set the channel for match announcements (admin only)",
			DMPermission: &dmPermission,
			Options:      []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to post announcements to",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:         "stats",
			Description:  "Check your recent Valorant Competitive stats",
			DMPermission: &dmPermission,
		},
		{
			Name:         "lastmatch",
			Description:  "Get details about your last competitive match",
			DMPermission: &dmPermission,
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// handleRegister handles the /register command
func (b *Bot) handleRegister(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var riotName, riotTag string
	region := "na"
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "riot_name":
			riotName = strings.TrimSpace(opt.StringValue())
		case "riot_tag":
			riotTag = strings.TrimSpace(strings.TrimPrefix(opt.StringValue(), "#"))
		case "region":
			region = opt.StringValue()
		}
	}

	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})

	if riotName == "" || riotTag == "" {
		b.editResponse(s, i, "Riot name and tag cannot be empty.")
		return
	}

	// Verify the account exists before saving
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	account, err := b.client.GetAccount(ctx, riotName, riotTag)
	if err != nil {
		slog.Error("Account verification failed", "riotID", riotName+"#"+riotTag, "error", err)
		b.editResponse(s, i, fmt.Sprintf("Could not find account `%s#%s`. Please check your Riot ID and try again.", riotName, riotTag))
		return
	}

	reg := &storage.Registration{
		GuildID:  i.GuildID,
		UserID:   i.Member.User.ID,
		RiotName: account.Name,
		RiotTag:  account.Tag,
		Region:   region,
	}
	if err := b.repo.UpsertRegistration(reg); err != nil {
		slog.Error("Failed to save registration", "error", err)
		b.editResponse(s, i, "Failed to register. Please try again.")
		return
	}

	b.editResponse(s, i, fmt.Sprintf(
		"Registered `%s` (%s). Your Competitive matches will be announced in this server.",
		reg.RiotID(), strings.ToUpper(region)))
}

// handleUnregister handles the /unregister command
func (b *Bot) handleUnregister(s *discordgo.Session, i *discordgo.InteractionCreate) {
	removed, err := b.repo.DeleteRegistration(i.GuildID, i.Member.User.ID)
	if err != nil {
		slog.Error("Failed to delete registration", "error", err)
		respondWithMessage(s, i, "Failed to unregister. Please try again.")
		return
	}

	if !removed {
		respondWithMessage(s, i, "You're not currently registered in this server.")
		return
	}
	respondWithMessage(s, i, "You've been unregistered. Your games will no longer be tracked here.")
}

// handleList handles the /list command
func (b *Bot) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	regs, err := b.repo.GetRegistrationsByGuild(i.GuildID)
	if err != nil {
		slog.Error("Failed to get registrations", "error", err)
		respondWithMessage(s, i, "Failed to retrieve player list.")
		return
	}

	if len(regs) == 0 {
		respondWithMessage(s, i, "No players are registered in this server.\nUse `/register` to add yourself!")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Registered Players:**\n\n")
	for idx, reg := range regs {
		sb.WriteString(fmt.Sprintf("%d. <@%s> - `%s` (%s)\n",
			idx+1, reg.UserID, reg.RiotID(), strings.ToUpper(reg.Region)))
	}

	respondWithMessage(s, i, sb.String())
}

// handleSetChannel handles the /setchannel command
func (b *Bot) handleSetChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil || i.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		respondWithMessage(s, i, "Only administrators can set the announcement channel.")
		return
	}

	channel := i.ApplicationCommandData().Options[0].ChannelValue(s)

	settings := &storage.GuildSettings{
		GuildID:               i.GuildID,
		AnnouncementChannelID: channel.ID,
	}
	if err := b.repo.UpsertGuildSettings(settings); err != nil {
		slog.Error("Failed to save guild settings", "error", err)
		respondWithMessage(s, i, "Failed to set announcement channel. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Match announcements will be posted in <#%s>", channel.ID))
}

// handleStats handles the /stats command
func (b *Bot) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	reg, err := b.repo.GetRegistration(i.GuildID, i.Member.User.ID)
	if err != nil || reg == nil {
		b.editResponse(s, i, "You're not registered in this server. Use `/register` first!")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	matches, err := b.client.GetMatches(ctx, reg.Region, reg.RiotName, reg.RiotTag)
	if err != nil {
		slog.Error("Failed to fetch match history", "riotID", reg.RiotID(), "error", err)
		b.editResponse(s, i, "Could not fetch your match history.")
		return
	}

	var comp []valorant.Match
	for _, m := range matches {
		if m.IsCompetitive() {
			comp = append(comp, m)
		}
		if len(comp) == 5 {
			break
		}
	}
	if len(comp) == 0 {
		b.editResponse(s, i, "No recent competitive matches found.")
		return
	}

	var wins, kills, deaths, assists int
	for _, m := range comp {
		p := m.FindPlayer(reg.RiotName, reg.RiotTag)
		if p == nil {
			continue
		}
		kills += p.Stats.Kills
		deaths += p.Stats.Deaths
		assists += p.Stats.Assists
		if m.WinningTeam(p.Team) {
			wins++
		}
	}

	n := len(comp)
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Recent Competitive Stats for %s", reg.RiotID()),
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   fmt.Sprintf("Last %d Comp Games", n),
				Value:  fmt.Sprintf("%dW - %dL", wins, n-wins),
				Inline: true,
			},
			{
				Name:   "Total K/D/A",
				Value:  fmt.Sprintf("%d/%d/%d", kills, deaths, assists),
				Inline: true,
			},
			{
				Name:   "Avg K/D",
				Value:  fmt.Sprintf("%.1f/%.1f", float64(kills)/float64(n), float64(deaths)/float64(n)),
				Inline: true,
			},
		},
	}

	b.editEmbedResponse(s, i, embed)
}

// handleLastMatch handles the /lastmatch command
func (b *Bot) handleLastMatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	reg, err := b.repo.GetRegistration(i.GuildID, i.Member.User.ID)
	if err != nil || reg == nil {
		b.editResponse(s, i, "You're not registered in this server. Use `/register` first!")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	matches, err := b.client.GetMatches(ctx, reg.Region, reg.RiotName, reg.RiotTag)
	if err != nil {
		slog.Error("Failed to fetch match history", "riotID", reg.RiotID(), "error", err)
		b.editResponse(s, i, "Could not fetch your match history.")
		return
	}

	var match *valorant.Match
	for idx := range matches {
		if matches[idx].IsCompetitive() {
			match = &matches[idx]
			break
		}
	}
	if match == nil {
		b.editResponse(s, i, "No recent competitive matches found.")
		return
	}

	p := match.FindPlayer(reg.RiotName, reg.RiotTag)
	if p == nil {
		b.editResponse(s, i, "Could not find your data in the match.")
		return
	}

	b.editEmbedResponse(s, i, buildLastMatchEmbed(match, p))
}

// Helper functions

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}

func (b *Bot) editEmbedResponse(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
}
