package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pittbot/internal/storage"
	"pittbot/internal/verify"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		data := interaction.ApplicationCommandData()
		switch data.Name {
		case "verify":
			b.startVerification(ctx, session, interaction)
		case "setup":
			b.handleSetup(ctx, session, interaction)
		case "unsetup":
			b.handleUnsetup(ctx, session, interaction)
		case "make-categories":
			b.handleMakeCategories(ctx, session, interaction, data.Options)
		case "auto-link":
			b.handleAutoLink(ctx, session, interaction)
		case "lookup":
			b.handleLookup(ctx, session, interaction, data.Options)
		case "set-user":
			b.handleSetUser(ctx, session, interaction, data.Options)
		case "set-email":
			b.handleSetEmail(ctx, session, interaction, data.Options)
		case "set-ra":
			b.handleSetRA(ctx, session, interaction, data.Options)
		case "reset-user":
			b.handleResetUser(ctx, session, interaction, data.Options)
		case "prune-pending":
			b.handlePrunePending(ctx, session, interaction)
		case "faq":
			b.handleFAQ(session, interaction, data.Options)
		}

	case discordgo.InteractionMessageComponent:
		customID := interaction.MessageComponentData().CustomID
		switch {
		case customID == customIDVerifyButton:
			b.startVerification(ctx, session, interaction)
		case customID == customIDVerifyPick:
			b.handleInvitePick(ctx, session, interaction)
		case strings.HasPrefix(customID, "eventsync_accept:"):
			b.confirmEventSync(ctx, session, interaction, strings.TrimPrefix(customID, "eventsync_accept:"))
		case strings.HasPrefix(customID, "eventsync_deny:"):
			b.eventsync.Deny(strings.TrimPrefix(customID, "eventsync_deny:"))
			b.respond(session, interaction, "Event will not be mirrored.", true)
		case strings.HasPrefix(customID, "emojisync_accept:"):
			b.confirmEmojiSync(ctx, session, interaction, strings.TrimPrefix(customID, "emojisync_accept:"))
		case strings.HasPrefix(customID, "emojisync_deny:"):
			b.emojisync.Deny(strings.TrimPrefix(customID, "emojisync_deny:"))
			b.respond(session, interaction, "Emoji changes ignored.", true)
		}

	case discordgo.InteractionModalSubmit:
		switch interaction.ModalSubmitData().CustomID {
		case customIDVerifyModal:
			b.handleEmailSubmit(ctx, session, interaction)
		case customIDUnsetupModal:
			b.handleUnsetupConfirm(ctx, session, interaction)
		}
	}
}

func (b *Bot) confirmEventSync(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, eventID string) {
	if err := b.eventsync.Confirm(ctx, session, eventID); err != nil {
		b.respond(session, interaction, "Nothing to mirror; the event may already be handled.", true)
		return
	}
	b.respond(session, interaction, "Event mirrored to all community servers.", true)
}

func (b *Bot) confirmEmojiSync(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	if err := b.emojisync.Confirm(ctx, session, guildID); err != nil {
		b.respond(session, interaction, "Nothing to sync; the changes may already be handled.", true)
		return
	}
	b.respond(session, interaction, "Emoji synced to all servers.", true)
}

func (b *Bot) handleSetup(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "Run this inside the server you want to set up.", true)
		return
	}
	if stored, err := b.store.GetGuild(ctx, interaction.GuildID); err == nil && stored.IsSetup {
		b.respond(session, interaction, fmt.Sprintf("This server is already set up. Landing channel: <#%s>. Use /unsetup first to redo it.", stored.LandingChannelID), true)
		return
	}
	guild, err := b.setupGuild(ctx, session, interaction.GuildID)
	if err != nil {
		b.logger.Error("setup failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, actionableError("Setup failed", err), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Server is set up. Landing channel: <#%s>.", guild.LandingChannelID), true)
}

const customIDUnsetupModal = "unsetup_confirm"

// handleUnsetup asks the admin to type the server name before anything
// is touched. Unsetup is too easy to run in the wrong server otherwise.
func (b *Bot) handleUnsetup(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if _, err := b.store.GetGuild(ctx, interaction.GuildID); err != nil {
		b.respond(session, interaction, "This server was never set up.", true)
		return
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customIDUnsetupModal,
			Title:    "Confirm Unsetup",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID: "server_name",
							Label:    "Type the server name to confirm",
							Style:    discordgo.TextInputShort,
							Required: true,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("unsetup confirm failed", zap.Error(err))
	}
}

func (b *Bot) handleUnsetupConfirm(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	typed := modalInputs(interaction.ModalSubmitData())["server_name"]

	name := ""
	if guild, err := session.State.Guild(interaction.GuildID); err == nil {
		name = guild.Name
	}
	if name == "" || typed != name {
		b.respond(session, interaction, "That doesn't match the server name. Nothing was changed.", true)
		return
	}

	guild, err := b.store.GetGuild(ctx, interaction.GuildID)
	if err != nil {
		b.respond(session, interaction, "This server was never set up.", true)
		return
	}
	guild.IsSetup = false
	if err := b.store.UpsertGuild(ctx, guild); err != nil {
		b.respond(session, interaction, "Failed to update the server record.", true)
		return
	}
	b.ops.Info(ctx, interaction.GuildID, "", "guild_unsetup", "")
	b.respond(session, interaction, "Server marked as not set up. Channels and roles were left in place.", true)
}

func (b *Bot) handleMakeCategories(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "A roster URL is required.", true)
		return
	}
	url := options[0].StringValue()

	// Provisioning dozens of channels outruns the 3 second interaction
	// window, so acknowledge first and follow up when done.
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})

	links, err := b.makeCategories(ctx, session, interaction.GuildID, url)
	if err != nil {
		b.logger.Error("make-categories failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		content := actionableError("Community creation failed", err)
		_, _ = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		return
	}

	if err := b.sendRosterFile(session, interaction.ChannelID, links); err != nil {
		b.logger.Warn("roster upload failed", zap.Error(err))
	}
	_, _ = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: "Communities created. The invite roster was posted in this channel.",
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (b *Bot) handleAutoLink(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	linked, err := b.autoLink(ctx, session, interaction.GuildID)
	if err != nil {
		b.respond(session, interaction, actionableError("Auto-link failed", err), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Linked %d categories to their roles.", linked), true)
}

func (b *Bot) handleLookup(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target := optionUser(session, options)
	if target == nil {
		b.respond(session, interaction, "A member is required.", true)
		return
	}

	stored, err := b.store.GetUser(ctx, target.ID)
	if err != nil {
		b.respond(session, interaction, "No verification record for that member.", true)
		return
	}

	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title: "Verification record",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: "<@" + stored.ID + ">", Inline: true},
			{Name: "Email", Value: valueOrDash(stored.Email), Inline: true},
			{Name: "Community", Value: valueOrDash(stored.Community), Inline: true},
			{Name: "Verified", Value: fmt.Sprintf("%t", stored.Verified), Inline: true},
			{Name: "RA", Value: fmt.Sprintf("%t", stored.IsRA), Inline: true},
		},
	}, true)
}

// handleSetUser pins a member to an invite code so their next
// verification skips attribution entirely.
func (b *Bot) handleSetUser(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target := optionUser(session, options)
	code := optionString(options, "invite")
	if target == nil || code == "" {
		b.respond(session, interaction, "A member and an invite code are required.", true)
		return
	}

	if _, err := b.store.GetInvite(ctx, code); err != nil {
		b.respond(session, interaction, "That invite code has no community binding. Create it with /make-categories or /auto-link first.", true)
		return
	}

	b.sessions.SetOverride(target.ID, code)
	b.sessions.Put(&verify.Session{UserID: target.ID, GuildID: interaction.GuildID, Code: code})
	if err := b.store.UpsertVerifyingUser(ctx, storage.VerifyingUser{ID: target.ID, InviteCode: code}); err != nil {
		b.logger.Warn("persist verifying user failed", zap.String("user_id", target.ID), zap.Error(err))
	}

	b.ops.Info(ctx, interaction.GuildID, target.ID, "attribution_override", code)
	b.respond(session, interaction, fmt.Sprintf("<@%s> is pinned to invite `%s`.", target.ID, code), true)
}

func (b *Bot) handleSetEmail(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target := optionUser(session, options)
	email := optionString(options, "email")
	if target == nil || email == "" {
		b.respond(session, interaction, "A member and an email are required.", true)
		return
	}

	stored, err := b.store.GetUser(ctx, target.ID)
	if err != nil {
		stored = storage.User{ID: target.ID, Username: target.Username}
	}
	stored.Email = email
	if err := b.store.UpsertUser(ctx, stored); err != nil {
		b.respond(session, interaction, "Failed to update the record.", true)
		return
	}

	_ = session.GuildMemberNickname(interaction.GuildID, target.ID, verify.Nickname(email, ""))
	b.ops.Info(ctx, interaction.GuildID, target.ID, "email_updated", email)
	b.respond(session, interaction, fmt.Sprintf("<@%s>'s email is now %s.", target.ID, email), true)
}

func (b *Bot) handleSetRA(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target := optionUser(session, options)
	if target == nil {
		b.respond(session, interaction, "A member is required.", true)
		return
	}

	guild, err := b.store.GetGuild(ctx, interaction.GuildID)
	if err != nil || guild.RARoleID == "" {
		b.respond(session, interaction, "This server has no RA role; run /setup first.", true)
		return
	}
	if err := session.GuildMemberRoleAdd(interaction.GuildID, target.ID, guild.RARoleID); err != nil {
		b.respond(session, interaction, actionableError("Could not grant the RA role", err), true)
		return
	}

	stored, err := b.store.GetUser(ctx, target.ID)
	if err != nil {
		stored = storage.User{ID: target.ID, Username: target.Username}
	}
	stored.IsRA = true
	if err := b.store.UpsertUser(ctx, stored); err != nil {
		b.respond(session, interaction, "Role granted, but the record update failed.", true)
		return
	}

	b.ops.Info(ctx, interaction.GuildID, target.ID, "ra_granted", "")
	b.respond(session, interaction, fmt.Sprintf("<@%s> is now an RA.", target.ID), true)
}

// handleResetUser wipes a member's verification so they can go through
// the flow again.
func (b *Bot) handleResetUser(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target := optionUser(session, options)
	if target == nil {
		b.respond(session, interaction, "A member is required.", true)
		return
	}

	stored, err := b.store.GetUser(ctx, target.ID)
	if err == nil && stored.Community != "" {
		if role := b.findRoleByName(interaction.GuildID, stored.Community); role != nil {
			_ = session.GuildMemberRoleRemove(interaction.GuildID, target.ID, role.ID)
		}
	}
	if guild, err := b.store.GetGuild(ctx, interaction.GuildID); err == nil && guild.RARoleID != "" {
		_ = session.GuildMemberRoleRemove(interaction.GuildID, target.ID, guild.RARoleID)
	}

	if _, err := b.store.DeleteUser(ctx, target.ID); err != nil {
		b.respond(session, interaction, "Failed to delete the record.", true)
		return
	}
	b.sessions.Delete(target.ID)

	// Keeping the invite attribution lets the member re-verify into the
	// same community without rejoining through a link.
	message := fmt.Sprintf("<@%s> has been reset and can verify again.", target.ID)
	if optionBool(options, "drop-invite") {
		if _, err := b.store.DeleteVerifyingUser(ctx, target.ID); err != nil {
			b.logger.Warn("clear verifying user failed", zap.String("user_id", target.ID), zap.Error(err))
		}
		message = fmt.Sprintf("<@%s> has been reset; they need to rejoin through an invite link to verify.", target.ID)
	}

	b.ops.Warn(ctx, interaction.GuildID, target.ID, "user_reset", "")
	b.respond(session, interaction, message, true)
}

func (b *Bot) handlePrunePending(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	cutoff := time.Now().Add(-time.Duration(b.cfg.Maintenance.PendingTTLHours) * time.Hour)
	pruned, err := b.store.DeleteStaleVerifyingUsers(ctx, cutoff)
	if err != nil {
		b.respond(session, interaction, "Prune failed.", true)
		return
	}
	b.ops.Info(ctx, interaction.GuildID, "", "pending_pruned", fmt.Sprintf("%d records", pruned))
	b.respond(session, interaction, fmt.Sprintf("Pruned %d stale pending verifications.", pruned), true)
}

// actionableError turns a Discord API failure into a message staff can
// act on; missing-permission errors name the fix.
func actionableError(prefix string, err error) string {
	message := err.Error()
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Message != nil {
		message = restErr.Message.Message
		if restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
			return prefix + ": the bot is missing permissions. Move its role above the community roles and grant Manage Roles and Manage Channels."
		}
	}
	return prefix + ": " + message
}

func optionUser(session *discordgo.Session, options []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.User {
	for _, option := range options {
		if option.Type == discordgo.ApplicationCommandOptionUser {
			return option.UserValue(session)
		}
	}
	return nil
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionString {
			return option.StringValue()
		}
	}
	return ""
}

func optionBool(options []*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionBoolean {
			return option.BoolValue()
		}
	}
	return false
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
