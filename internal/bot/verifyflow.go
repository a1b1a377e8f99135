package bot

import (
	"context"
	"errors"
	"fmt"

	"pittbot/internal/invites"
	"pittbot/internal/storage"
	"pittbot/internal/verify"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	customIDVerifyButton = "verify_button"
	customIDVerifyPick   = "verify_pick"
	customIDVerifyModal  = "verify_email"
)

// startVerification handles both the /verify command and the landing
// channel button. Verified members are told so and nothing is touched;
// ambiguous joins get the invite picker; everyone else gets the email
// form.
func (b *Bot) startVerification(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	if user == nil || interaction.GuildID == "" {
		b.respond(session, interaction, "Verification only works inside a server.", true)
		return
	}

	// Already-verified members short-circuit with no role or nickname
	// changes; staff reset the record if something needs redoing.
	if stored, err := b.store.GetUser(ctx, user.ID); err == nil && stored.Verified {
		message := "You're already verified"
		if stored.Community != "" {
			message += " in " + stored.Community
		}
		b.respond(session, interaction, message+".", true)
		return
	}

	sess, ok := b.sessions.Get(user.ID)
	if !ok {
		// The bot may have restarted since the join; fall back to the
		// persisted attribution.
		pending, err := b.store.GetVerifyingUser(ctx, user.ID)
		if err != nil {
			b.ops.Warn(ctx, interaction.GuildID, user.ID, "verify_no_session", "no attribution on record")
			b.respond(session, interaction, "We couldn't match you to an invite link. Please contact your RA or a staff member.", true)
			return
		}
		snapshot := b.snapshots.Get(interaction.GuildID)
		firstUse := false
		if entry, ok := invites.FindCode(snapshot, pending.InviteCode); ok {
			firstUse = entry.Uses == 1
		}
		sess = &verify.Session{UserID: user.ID, GuildID: interaction.GuildID, Code: pending.InviteCode, FirstUse: firstUse}
		b.sessions.Put(sess)
	}

	if sess.Code == "" && len(sess.Candidates) > 0 {
		b.promptInvitePick(session, interaction, sess.Candidates)
		return
	}
	b.promptEmailForm(session, interaction)
}

func (b *Bot) promptInvitePick(session *discordgo.Session, interaction *discordgo.InteractionCreate, candidates []invites.Snapshot) {
	ctx := context.Background()

	// Candidates whose invite cannot be resolved to a live role are
	// left out of the picker; they are dead ends for the member either
	// way.
	options := make([]discordgo.SelectMenuOption, 0, len(candidates))
	for _, candidate := range candidates {
		roleID, err := b.resolver.Resolve(ctx, interaction.GuildID, candidate.Code)
		if err != nil {
			b.ops.Warn(ctx, interaction.GuildID, "", "candidate_unresolvable", candidate.Code+": "+err.Error())
			continue
		}
		label := candidate.Code
		if name, err := b.lookupRole(interaction.GuildID, roleID); err == nil {
			label = name
		}
		options = append(options, discordgo.SelectMenuOption{Label: label, Value: candidate.Code})
	}
	if len(options) == 0 {
		b.respond(session, interaction, "None of your possible communities could be resolved. Please contact a staff member.", true)
		return
	}

	minValues := 1
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "A few invite links were used at the same time you joined. Which community are you in?",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    customIDVerifyPick,
							Placeholder: "Pick your community",
							MinValues:   &minValues,
							MaxValues:   1,
							Options:     options,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("invite picker failed", zap.Error(err))
	}
}

func (b *Bot) promptEmailForm(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customIDVerifyModal,
			Title:    "Resident Verification",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "email",
							Label:       "University email",
							Style:       discordgo.TextInputShort,
							Placeholder: "abc123" + b.cfg.EmailDomain,
							Required:    true,
						},
					},
				},
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "preferred",
							Label:       "Preferred name (optional)",
							Style:       discordgo.TextInputShort,
							Placeholder: "Shown as your nickname instead of your email",
							Required:    false,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("email form failed", zap.Error(err))
	}
}

// handleInvitePick records the member's choice from the ambiguity
// picker and moves straight to the email form.
func (b *Bot) handleInvitePick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	values := interaction.MessageComponentData().Values
	if user == nil || len(values) == 0 {
		return
	}
	code := values[0]

	sess, ok := b.sessions.Get(user.ID)
	if !ok {
		sess = &verify.Session{UserID: user.ID, GuildID: interaction.GuildID}
	}
	firstUse := false
	if entry, ok := invites.FindCode(sess.Candidates, code); ok {
		firstUse = entry.Uses == 0
	}
	sess.Code = code
	sess.FirstUse = firstUse
	sess.Candidates = nil
	b.sessions.Put(sess)

	// A concurrent attribution pass for this member must land on the
	// same choice rather than recompute candidates.
	b.sessions.SetOverride(user.ID, code)

	if err := b.store.UpsertVerifyingUser(ctx, storage.VerifyingUser{ID: user.ID, InviteCode: code}); err != nil {
		b.logger.Warn("persist verifying user failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	b.ops.Info(ctx, interaction.GuildID, user.ID, "join_disambiguated", code)

	b.promptEmailForm(session, interaction)
}

// handleEmailSubmit completes verification: validate the address,
// resolve the community role, apply roles and nickname, and persist the
// member.
func (b *Bot) handleEmailSubmit(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	if user == nil {
		return
	}

	inputs := modalInputs(interaction.ModalSubmitData())
	email := inputs["email"]
	preferred := inputs["preferred"]

	if !verify.ValidEmail(email, b.cfg.EmailDomain) {
		b.respond(session, interaction, fmt.Sprintf("That doesn't look like a %s address. Run /verify to try again.", b.cfg.EmailDomain), true)
		return
	}

	sess, ok := b.sessions.Get(user.ID)
	if !ok || sess.Code == "" {
		b.respond(session, interaction, "Your verification session expired. Run /verify to start over.", true)
		return
	}

	roleID, err := b.resolver.Resolve(ctx, interaction.GuildID, sess.Code)
	switch {
	case errors.Is(err, verify.ErrNoBinding):
		b.ops.Crit(ctx, interaction.GuildID, user.ID, "verify_abort", "invite "+sess.Code+" has no community binding")
		b.respond(session, interaction, "Your invite link isn't linked to a community yet. Please contact a staff member.", true)
		return
	case errors.Is(err, verify.ErrRoleGone):
		b.ops.Crit(ctx, interaction.GuildID, user.ID, "verify_abort", "community role for invite "+sess.Code+" was deleted")
		b.respond(session, interaction, "Your community's role is missing. Please contact a staff member.", true)
		return
	case err != nil:
		b.logger.Error("invite resolution failed", zap.String("code", sess.Code), zap.Error(err))
		b.respond(session, interaction, "Something went wrong. Please try again in a moment.", true)
		return
	}

	// Permission failures on role and nickname edits are reported but
	// don't abort; the record still gets persisted and staff can fix
	// the bot's role position afterwards.
	if err := session.GuildMemberRoleAdd(interaction.GuildID, user.ID, roleID); err != nil {
		b.ops.Crit(ctx, interaction.GuildID, user.ID, "role_grant_failed",
			"could not grant community role; raise the bot's role above the community roles: "+err.Error())
	}

	isRA := sess.FirstUse
	guild, err := b.store.GetGuild(ctx, interaction.GuildID)
	if err != nil {
		guild = storage.Guild{ID: interaction.GuildID}
	}

	residentsID := ""
	if residents := b.findRoleByName(interaction.GuildID, b.cfg.Roles.Residents); residents != nil {
		residentsID = residents.ID
	}
	for _, extra := range extraRoleIDs(guild.RARoleID, residentsID, isRA) {
		if err := session.GuildMemberRoleAdd(interaction.GuildID, user.ID, extra); err != nil {
			b.logger.Warn("role grant failed", zap.String("user_id", user.ID), zap.String("role_id", extra), zap.Error(err))
		}
	}

	// Once verified, the member no longer posts in the landing channel
	// under their community identity.
	if guild.LandingChannelID != "" {
		if err := session.ChannelPermissionSet(guild.LandingChannelID, roleID, discordgo.PermissionOverwriteTypeRole, 0, discordgo.PermissionSendMessages|discordgo.PermissionViewChannel); err != nil {
			b.logger.Warn("landing channel revoke failed", zap.String("role_id", roleID), zap.Error(err))
		}
	}

	nickname := verify.Nickname(email, preferred)
	if err := session.GuildMemberNickname(interaction.GuildID, user.ID, nickname); err != nil {
		// Nickname failures are cosmetic; Discord refuses them for the
		// guild owner.
		b.logger.Warn("nickname set failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	community := ""
	if name, err := b.lookupRole(interaction.GuildID, roleID); err == nil {
		community = name
	}

	if err := b.store.UpsertUser(ctx, storage.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     email,
		Verified:  true,
		IsRA:      isRA,
		Community: community,
	}); err != nil {
		b.logger.Error("persist verified user failed", zap.String("user_id", user.ID), zap.Error(err))
		b.ops.Crit(ctx, interaction.GuildID, user.ID, "persist_failed", err.Error())
		b.respond(session, interaction, "Your roles were set but the verification may not have been saved. Please run /verify again later or contact a staff member.", true)
		return
	}

	b.sessions.Delete(user.ID)
	if _, err := b.store.DeleteVerifyingUser(ctx, user.ID); err != nil {
		b.logger.Warn("clear verifying user failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	b.ops.Info(ctx, interaction.GuildID, user.ID, "verified", community)
	welcome := "You're verified. Welcome"
	if community != "" {
		welcome += " to " + community
	}
	b.respond(session, interaction, welcome+"!", true)
}

// extraRoleIDs picks the roles granted beyond the community role.
// First use of an invite marks the RA; RAs are staff, not residents,
// so the two roles are mutually exclusive.
func extraRoleIDs(raRoleID, residentsRoleID string, firstUse bool) []string {
	if firstUse {
		if raRoleID == "" {
			return nil
		}
		return []string{raRoleID}
	}
	if residentsRoleID == "" {
		return nil
	}
	return []string{residentsRoleID}
}

// modalInputs flattens a modal submission into its text inputs keyed by
// custom ID.
func modalInputs(data discordgo.ModalSubmitInteractionData) map[string]string {
	inputs := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				inputs[input.CustomID] = input.Value
			}
		}
	}
	return inputs
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil {
		return interaction.Member.User
	}
	return interaction.User
}
