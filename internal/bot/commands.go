package bot

import "github.com/bwmarrin/discordgo"

var manageGuild int64 = discordgo.PermissionManageServer

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "verify",
			Description: "Verify yourself as a resident",
		},
		{
			Name:                     "setup",
			Description:              "Set up this server for resident onboarding",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     "unsetup",
			Description:              "Mark this server as not set up",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     "make-categories",
			Description:              "Build communities from an RA roster",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "roster",
					Description: "URL of the RA roster, one name per line",
					Required:    true,
				},
			},
		},
		{
			Name:                     "auto-link",
			Description:              "Link hand-built categories to their roles with fresh invites",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     "lookup",
			Description:              "Show a member's verification record",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to look up",
					Required:    true,
				},
			},
		},
		{
			Name:                     "set-user",
			Description:              "Pin a member to an invite code for verification",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to pin",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "invite",
					Description: "Invite code of their community",
					Required:    true,
				},
			},
		},
		{
			Name:                     "set-email",
			Description:              "Set a member's university email",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to update",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "email",
					Description: "University email address",
					Required:    true,
				},
			},
		},
		{
			Name:                     "set-ra",
			Description:              "Grant a member the RA role",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to promote",
					Required:    true,
				},
			},
		},
		{
			Name:                     "reset-user",
			Description:              "Wipe a member's verification so they can start over",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to reset",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "drop-invite",
					Description: "Also forget which invite the member joined through",
				},
			},
		},
		{
			Name:                     "prune-pending",
			Description:              "Delete stale pending verifications",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:        "faq",
			Description: "Answer a common onboarding question",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "topic",
					Description: "What to explain",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "verification", Value: "verification"},
						{Name: "nickname", Value: "nickname"},
						{Name: "roles", Value: "roles"},
						{Name: "invites", Value: "invites"},
						{Name: "ra", Value: "ra"},
						{Name: "help", Value: "help"},
					},
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildCmds, err := b.session.ApplicationCommands(appID, guild.ID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guild.ID, cmd.ID)
		}
	}
	return nil
}
