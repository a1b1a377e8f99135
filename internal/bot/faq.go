package bot

import (
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// faqTopics holds the answers behind /faq, keyed by topic name.
var faqTopics = map[string]string{
	"verification": "To verify, open the landing channel and press the Verify button, or run /verify. " +
		"You'll be asked for your university email; once it checks out you get your community role and nickname automatically.",
	"nickname": "Your server nickname is set to the first part of your university email so your RA can match you to their roster. " +
		"Ask a staff member if you need it changed.",
	"roles": "Your community role is assigned from the invite link you joined through. " +
		"If you think you're in the wrong community, contact your RA or a staff member.",
	"invites": "Each community has its own permanent invite link. Don't share yours outside your floor; " +
		"the link decides which community new members land in.",
	"ra": "RAs get the RA role automatically when they're the first person to use their community's invite link. " +
		"Staff can also grant it manually with /set-ra.",
	"help": "If verification fails or you got no DM after joining, contact your RA or a staff member and they can link you manually.",
}

func (b *Bot) handleFAQ(session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	topic := strings.ToLower(optionString(options, "topic"))
	answer, ok := faqTopics[topic]
	if !ok {
		b.respond(session, interaction, "Unknown topic. Available: "+strings.Join(faqTopicNames(), ", ")+".", true)
		return
	}
	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{Title: "FAQ: " + topic, Description: answer}, true)
}

func faqTopicNames() []string {
	names := make([]string, 0, len(faqTopics))
	for name := range faqTopics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
