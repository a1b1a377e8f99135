package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pittbot/internal/config"
	"pittbot/internal/invites"
	"pittbot/internal/modules/emojisync"
	"pittbot/internal/modules/eventsync"
	"pittbot/internal/modules/opslog"
	"pittbot/internal/storage"
	"pittbot/internal/verify"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	ops       *opslog.Logger
	session   *discordgo.Session
	snapshots *invites.SnapshotStore
	resolver  *verify.Resolver
	sessions  *verify.SessionStore
	eventsync *eventsync.Module
	emojisync *emojisync.Module
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, ops *opslog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildEmojis |
		discordgo.IntentsGuildMessages |
		discordgo.IntentGuildScheduledEvents

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		ops:       ops,
		session:   session,
		snapshots: invites.NewSnapshotStore(),
		sessions:  verify.NewSessionStore(time.Duration(cfg.Timeouts.SelectionSeconds) * time.Second),
	}
	b.resolver = verify.NewResolver(store, b.lookupRole)
	b.eventsync = eventsync.New(cfg.HubGuildID, cfg.CommandsChannelID, logger, ops)
	b.emojisync = emojisync.New(cfg.HubGuildID, cfg.CommandsChannelID, logger)

	if b.ops != nil {
		b.ops.SetNotifier(func(ctx context.Context, entry storage.OpsLog) {
			b.notifyOps(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInviteCreate)
	b.session.AddHandler(b.onInviteDelete)
	b.session.AddHandler(b.onChannelUpdate)
	b.session.AddHandler(b.onGuildEmojisUpdate)
	b.session.AddHandler(b.onScheduledEventCreate)
	b.session.AddHandler(b.onScheduledEventUpdate)
	b.session.AddHandler(b.onScheduledEventDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))

	ctx := context.Background()
	for _, guild := range event.Guilds {
		if err := b.prepareGuild(ctx, session, guild.ID); err != nil {
			b.logger.Warn("guild preparation failed", zap.String("guild_id", guild.ID), zap.Error(err))
		}
	}
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || event.Unavailable {
		return
	}
	ctx := context.Background()
	if err := b.prepareGuild(ctx, session, event.ID); err != nil {
		b.logger.Warn("guild preparation failed", zap.String("guild_id", event.ID), zap.Error(err))
	}
}

func (b *Bot) onGuildDelete(session *discordgo.Session, event *discordgo.GuildDelete) {
	b.snapshots.Forget(event.ID)
}

// prepareGuild refreshes everything attribution needs after a connect
// or a new guild join: the invite snapshot, the persisted invite
// bindings, the emoji cache, and the landing channel's verify message.
func (b *Bot) prepareGuild(ctx context.Context, session *discordgo.Session, guildID string) error {
	if err := b.refreshInvites(session, guildID); err != nil {
		return fmt.Errorf("snapshot invites: %w", err)
	}
	if err := b.resolver.Warm(ctx, guildID); err != nil {
		return fmt.Errorf("warm bindings: %w", err)
	}

	if guild, err := session.State.Guild(guildID); err == nil {
		b.emojisync.Seed(guildID, guild.Emojis)
	}

	stored, err := b.store.GetGuild(ctx, guildID)
	if err != nil || !stored.IsSetup {
		return nil
	}
	return b.refreshVerifyMessage(session, stored.LandingChannelID)
}

func (b *Bot) refreshInvites(session *discordgo.Session, guildID string) error {
	live, err := session.GuildInvites(guildID)
	if err != nil {
		return err
	}
	snapshot := make([]invites.Snapshot, 0, len(live))
	for _, invite := range live {
		snapshot = append(snapshot, invites.Snapshot{Code: invite.Code, Uses: invite.Uses})
	}
	b.snapshots.Set(guildID, snapshot)
	return nil
}

func (b *Bot) onInviteCreate(session *discordgo.Session, event *discordgo.InviteCreate) {
	if err := b.refreshInvites(session, event.GuildID); err != nil {
		b.logger.Warn("invite snapshot refresh failed", zap.String("guild_id", event.GuildID), zap.Error(err))
	}
}

func (b *Bot) onInviteDelete(session *discordgo.Session, event *discordgo.InviteDelete) {
	if err := b.refreshInvites(session, event.GuildID); err != nil {
		b.logger.Warn("invite snapshot refresh failed", zap.String("guild_id", event.GuildID), zap.Error(err))
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.User == nil || event.User.Bot || event.GuildID == "" {
		return
	}

	ctx := context.Background()
	old := b.snapshots.Get(event.GuildID)
	if err := b.refreshInvites(session, event.GuildID); err != nil {
		b.logger.Error("invite snapshot failed on join", zap.String("guild_id", event.GuildID), zap.Error(err))
		b.ops.Crit(ctx, event.GuildID, event.User.ID, "join_snapshot_failed", err.Error())
		return
	}
	current := b.snapshots.Get(event.GuildID)

	// Admin overrides pin a member to an invite before attribution.
	if code, ok := b.sessions.TakeOverride(event.User.ID); ok {
		b.beginSession(ctx, event.GuildID, event.User.ID, code, false)
		b.ops.Info(ctx, event.GuildID, event.User.ID, "join_attributed", "override to "+code)
		return
	}

	candidates, vanished := invites.Attribute(old, current)
	if len(vanished) > 0 {
		b.logger.Info("invites vanished between snapshots",
			zap.String("guild_id", event.GuildID),
			zap.Strings("codes", vanished))
	}
	switch len(candidates) {
	case 0:
		b.ops.Crit(ctx, event.GuildID, event.User.ID, "join_unattributed", "no invite use increased")
		b.dmUser(event.User.ID, "We couldn't tell which invite link you joined through. Please contact your RA or a staff member so they can link you manually.")
	case 1:
		b.beginSession(ctx, event.GuildID, event.User.ID, candidates[0].Code, candidates[0].Uses == 0)
		b.ops.Info(ctx, event.GuildID, event.User.ID, "join_attributed", candidates[0].Code)
	default:
		b.sessions.Put(&verify.Session{
			UserID:     event.User.ID,
			GuildID:    event.GuildID,
			Candidates: candidates,
		})
		b.ops.Warn(ctx, event.GuildID, event.User.ID, "join_ambiguous", fmt.Sprintf("%d candidate invites", len(candidates)))
	}
}

func (b *Bot) beginSession(ctx context.Context, guildID, userID, code string, firstUse bool) {
	b.sessions.Put(&verify.Session{
		UserID:   userID,
		GuildID:  guildID,
		Code:     code,
		FirstUse: firstUse,
	})
	if err := b.store.UpsertVerifyingUser(ctx, storage.VerifyingUser{ID: userID, InviteCode: code}); err != nil {
		b.logger.Warn("persist verifying user failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// onChannelUpdate propagates community category renames to the bound
// role so the roster stays readable, then refreshes the binding cache.
func (b *Bot) onChannelUpdate(session *discordgo.Session, event *discordgo.ChannelUpdate) {
	if event.Channel == nil || event.Channel.Type != discordgo.ChannelTypeGuildCategory {
		return
	}
	if event.BeforeUpdate != nil && event.BeforeUpdate.Name == event.Channel.Name {
		return
	}

	ctx := context.Background()
	category, err := b.store.GetCategory(ctx, event.Channel.ID)
	if err != nil {
		return
	}

	if _, err := session.GuildRoleEdit(event.Channel.GuildID, category.RoleID, &discordgo.RoleParams{Name: event.Channel.Name}); err != nil {
		b.logger.Warn("category role rename failed",
			zap.String("guild_id", event.Channel.GuildID),
			zap.String("role_id", category.RoleID),
			zap.Error(err))
		return
	}
	b.ops.Info(ctx, event.Channel.GuildID, "", "category_renamed", event.Channel.Name)
}

func (b *Bot) onGuildEmojisUpdate(session *discordgo.Session, event *discordgo.GuildEmojisUpdate) {
	b.emojisync.HandleUpdate(context.Background(), session, event)
}

func (b *Bot) onScheduledEventCreate(session *discordgo.Session, event *discordgo.GuildScheduledEventCreate) {
	b.eventsync.HandleCreate(session, event)
}

func (b *Bot) onScheduledEventUpdate(session *discordgo.Session, event *discordgo.GuildScheduledEventUpdate) {
	b.eventsync.HandleUpdate(context.Background(), session, event)
}

func (b *Bot) onScheduledEventDelete(session *discordgo.Session, event *discordgo.GuildScheduledEventDelete) {
	b.eventsync.HandleDelete(context.Background(), session, event)
}

// lookupRole checks that a role still exists in a guild.
func (b *Bot) lookupRole(guildID, roleID string) (string, error) {
	guild, err := b.session.State.Guild(guildID)
	if err == nil {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				return role.Name, nil
			}
		}
	}
	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role.Name, nil
		}
	}
	return "", fmt.Errorf("role %s not found in guild %s", roleID, guildID)
}

func (b *Bot) findRoleByName(guildID, name string) *discordgo.Role {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	for _, role := range guild.Roles {
		if strings.EqualFold(role.Name, name) {
			return role
		}
	}
	return nil
}

func (b *Bot) findChannelByName(guildID, name string, channelType discordgo.ChannelType) *discordgo.Channel {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	for _, channel := range guild.Channels {
		if channel.Type == channelType && strings.EqualFold(channel.Name, name) {
			return channel
		}
	}
	return nil
}

func (b *Bot) dmUser(userID, content string) {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Warn("dm open failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSend(channel.ID, content); err != nil {
		b.logger.Warn("dm send failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// notifyOps mirrors warning and critical entries into the guild's log
// channel.
func (b *Bot) notifyOps(ctx context.Context, entry storage.OpsLog) {
	_ = ctx
	if entry.GuildID == "" || entry.Level == opslog.LevelInfo {
		return
	}
	channel := b.findChannelByName(entry.GuildID, b.cfg.Channels.OpsLog, discordgo.ChannelTypeGuildText)
	if channel == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s", entry.Level, entry.Event)
	if entry.UserID != "" {
		line += " <@" + entry.UserID + ">"
	}
	if entry.Details != "" {
		line += ": " + entry.Details
	}
	_, _ = b.session.ChannelMessageSend(channel.ID, line)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}
