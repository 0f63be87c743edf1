package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/coder/quartz"

	"github.com/KuuCi/discord-postplant/internal/config"
	"github.com/KuuCi/discord-postplant/internal/storage"
	"github.com/KuuCi/discord-postplant/internal/tracker"
	"github.com/KuuCi/discord-postplant/internal/valorant"
)

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	repo     *storage.Repository
	client   *valorant.Client
	tracker  *tracker.Tracker
	commands []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Presence and voice-state intents drive the whole pipeline
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildVoiceStates

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	b := &Bot{
		config:  cfg,
		session: session,
		repo:    repo,
		client:  valorant.NewClient(cfg.HenrikAPIKey),
	}

	trackerCfg := tracker.Config{
		GroupWait:    cfg.GroupWait,
		MaxGroupWait: cfg.MaxGroupWait,
		RetryPause:   cfg.RetryPause,
		Fetcher: tracker.FetcherConfig{
			SettleWait:      cfg.APISettleWait,
			MaxAttempts:     cfg.FetchAttempts,
			CompetitiveOnly: cfg.CompetitiveOnly,
		},
	}
	b.tracker = tracker.New(trackerCfg, repo, b.client, repo, b, quartz.NewReal())

	// Register event handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and registers slash commands
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the correlation pipeline first so nothing tries to announce
	// through a closing session.
	if b.tracker != nil {
		b.tracker.Close()
	}

	if b.repo != nil {
		b.repo.Close()
	}

	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handlePresenceUpdate)
	b.session.AddHandler(b.handleVoiceStateUpdate)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handlePresenceUpdate translates presence changes into activity signals.
// Discord sends the full current activity list, not a delta; the session
// state machine absorbs the resulting duplicate signals.
func (b *Bot) handlePresenceUpdate(s *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.User == nil || p.GuildID == "" {
		return
	}

	playing, streaming := valorantActivity(p.Activities)
	if playing {
		b.tracker.HandleSignal(p.GuildID, p.User.ID, tracker.SignalStarted,
			b.voiceChannelID(p.GuildID, p.User.ID), streaming)
	} else {
		b.tracker.HandleSignal(p.GuildID, p.User.ID, tracker.SignalStopped, "", false)
	}
}

// handleVoiceStateUpdate keeps in-flight sessions grouped by the channel
// the user is actually in when their game ends.
func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.GuildID == "" {
		return
	}
	b.tracker.HandleVoiceUpdate(v.GuildID, v.UserID, v.ChannelID)
}

// voiceChannelID returns the user's current voice channel, or empty
func (b *Bot) voiceChannelID(guildID, userID string) string {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// valorantActivity reports whether the activity list contains Valorant,
// and whether the user is streaming it.
func valorantActivity(activities []*discordgo.Activity) (playing, streaming bool) {
	for _, a := range activities {
		if a == nil || !strings.Contains(strings.ToLower(a.Name), "valorant") {
			continue
		}
		playing = true
		if a.Type == discordgo.ActivityTypeStreaming {
			streaming = true
		}
	}
	return playing, streaming
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	// Commands are guild-only; an interaction without a member has no
	// guild context to act on.
	if i.Member == nil || i.Member.User == nil {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "register":
		b.handleRegister(s, i)
	case "unregister":
		b.handleUnregister(s, i)
	case "list":
		b.handleList(s, i)
	case "setchannel":
		b.handleSetChannel(s, i)
	case "stats":
		b.handleStats(s, i)
	case "lastmatch":
		b.handleLastMatch(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}
