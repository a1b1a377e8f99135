package bot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"pittbot/internal/roster"
	"pittbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// setupGuild provisions a community server: the RA role, the landing
// channel with its verify button, and the guild record.
func (b *Bot) setupGuild(ctx context.Context, session *discordgo.Session, guildID string) (storage.Guild, error) {
	raRole := b.findRoleByName(guildID, b.cfg.Roles.RA)
	if raRole == nil {
		hoist := true
		created, err := session.GuildRoleCreate(guildID, &discordgo.RoleParams{
			Name:  b.cfg.Roles.RA,
			Hoist: &hoist,
		})
		if err != nil {
			return storage.Guild{}, fmt.Errorf("create RA role: %w", err)
		}
		raRole = created
	}

	if b.findRoleByName(guildID, b.cfg.Roles.Residents) == nil {
		if _, err := session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: b.cfg.Roles.Residents}); err != nil {
			return storage.Guild{}, fmt.Errorf("create residents role: %w", err)
		}
	}

	landing := b.findChannelByName(guildID, b.cfg.Channels.Landing, discordgo.ChannelTypeGuildText)
	if landing == nil {
		created, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name: b.cfg.Channels.Landing,
			Type: discordgo.ChannelTypeGuildText,
		})
		if err != nil {
			return storage.Guild{}, fmt.Errorf("create landing channel: %w", err)
		}
		landing = created
	}

	if err := b.refreshVerifyMessage(session, landing.ID); err != nil {
		return storage.Guild{}, fmt.Errorf("post verify message: %w", err)
	}

	guild := storage.Guild{
		ID:               guildID,
		IsSetup:          true,
		RARoleID:         raRole.ID,
		LandingChannelID: landing.ID,
	}
	if err := b.store.UpsertGuild(ctx, guild); err != nil {
		return storage.Guild{}, fmt.Errorf("persist guild: %w", err)
	}

	b.ops.Info(ctx, guildID, "", "guild_setup", "landing <#"+landing.ID+">")
	return guild, nil
}

// refreshVerifyMessage replaces the bot's previous verify prompt in the
// landing channel so there is exactly one live button.
func (b *Bot) refreshVerifyMessage(session *discordgo.Session, channelID string) error {
	if channelID == "" {
		return nil
	}

	messages, err := session.ChannelMessages(channelID, 50, "", "", "")
	if err == nil {
		for _, message := range messages {
			if message.Author != nil && message.Author.ID == session.State.User.ID {
				_ = session.ChannelMessageDelete(channelID, message.ID)
			}
		}
	}

	_, err = session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: b.cfg.VerifyMessage,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Verify",
						Style:    discordgo.PrimaryButton,
						CustomID: customIDVerifyButton,
					},
				},
			},
		},
	})
	return err
}

// makeCategories builds one community per roster entry: a hoisted role,
// a hidden category with chat and voice channels, and a permanent
// invite bound to the role. It returns the RA roster annotated with
// each community's invite link.
func (b *Bot) makeCategories(ctx context.Context, session *discordgo.Session, guildID, rosterURL string) (string, error) {
	names, err := roster.Fetch(ctx, http.DefaultClient, rosterURL)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("roster at %s is empty", rosterURL)
	}

	guild, err := b.store.GetGuild(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("guild is not set up; run /setup first")
	}

	var links strings.Builder
	for _, entry := range names {
		name := roster.CommunityName(entry)

		hoist := true
		role, err := session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name, Hoist: &hoist})
		if err != nil {
			return "", fmt.Errorf("create role %q: %w", name, err)
		}

		overwrites := []*discordgo.PermissionOverwrite{
			{
				ID:   guildID, // @everyone shares the guild ID
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    role.ID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel,
			},
		}

		category, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:                 name,
			Type:                 discordgo.ChannelTypeGuildCategory,
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			return "", fmt.Errorf("create category %q: %w", name, err)
		}

		chat, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:                 "chat",
			Type:                 discordgo.ChannelTypeGuildText,
			ParentID:             category.ID,
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			return "", fmt.Errorf("create chat channel for %q: %w", name, err)
		}
		if _, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:                 "voice",
			Type:                 discordgo.ChannelTypeGuildVoice,
			ParentID:             category.ID,
			PermissionOverwrites: overwrites,
		}); err != nil {
			return "", fmt.Errorf("create voice channel for %q: %w", name, err)
		}

		// Members who finish verification no longer need the landing
		// channel.
		if guild.LandingChannelID != "" {
			if err := session.ChannelPermissionSet(guild.LandingChannelID, role.ID, discordgo.PermissionOverwriteTypeRole, 0, discordgo.PermissionViewChannel); err != nil {
				b.logger.Warn("landing channel overwrite failed", zap.String("role_id", role.ID), zap.Error(err))
			}
		}

		invite, err := session.ChannelInviteCreate(chat.ID, discordgo.Invite{MaxAge: 0, MaxUses: 0, Unique: true})
		if err != nil {
			return "", fmt.Errorf("create invite for %q: %w", name, err)
		}

		if err := b.resolver.Bind(ctx, guildID, invite.Code, role.ID); err != nil {
			return "", err
		}
		if err := b.store.UpsertCategory(ctx, storage.Category{ID: category.ID, RoleID: role.ID}); err != nil {
			return "", fmt.Errorf("persist category %q: %w", name, err)
		}

		fmt.Fprintf(&links, "%s: https://discord.gg/%s\n", entry, invite.Code)
		b.ops.Info(ctx, guildID, "", "community_created", name)
	}

	return links.String(), nil
}

// sendRosterFile uploads the RA roster annotated with invite links to
// the channel the command ran in.
func (b *Bot) sendRosterFile(session *discordgo.Session, channelID, content string) error {
	_, err := session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: "Community invite links, one per RA:",
		Files: []*discordgo.File{
			{
				Name:        "ras-with-links.txt",
				ContentType: "text/plain",
				Reader:      bytes.NewReader([]byte(content)),
			},
		},
	})
	return err
}

// autoLink repairs bindings for communities that were built by hand:
// any category whose name matches an existing role gets a fresh invite
// bound to that role.
func (b *Bot) autoLink(ctx context.Context, session *discordgo.Session, guildID string) (int, error) {
	guild, err := session.State.Guild(guildID)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, channel := range guild.Channels {
		if channel.Type != discordgo.ChannelTypeGuildCategory {
			continue
		}
		if _, err := b.store.GetCategory(ctx, channel.ID); err == nil {
			continue
		}
		role := b.findRoleByName(guildID, channel.Name)
		if role == nil {
			continue
		}

		var target *discordgo.Channel
		for _, candidate := range guild.Channels {
			if candidate.ParentID == channel.ID && candidate.Type == discordgo.ChannelTypeGuildText {
				target = candidate
				break
			}
		}
		if target == nil {
			continue
		}

		invite, err := session.ChannelInviteCreate(target.ID, discordgo.Invite{MaxAge: 0, MaxUses: 0, Unique: true})
		if err != nil {
			b.logger.Warn("auto-link invite failed", zap.String("category", channel.Name), zap.Error(err))
			continue
		}
		if err := b.resolver.Bind(ctx, guildID, invite.Code, role.ID); err != nil {
			return linked, err
		}
		if err := b.store.UpsertCategory(ctx, storage.Category{ID: channel.ID, RoleID: role.ID}); err != nil {
			return linked, err
		}
		linked++
		b.ops.Info(ctx, guildID, "", "community_linked", channel.Name)
	}
	return linked, nil
}
