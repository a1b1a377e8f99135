package bot

import (
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestActionableErrorMissingPermissions(t *testing.T) {
	err := &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{
			Code:    discordgo.ErrCodeMissingPermissions,
			Message: "Missing Permissions",
		},
	}

	got := actionableError("Setup failed", err)
	if !strings.Contains(got, "Manage Roles") {
		t.Fatalf("expected an actionable permissions hint, got %q", got)
	}
}

func TestActionableErrorPassthrough(t *testing.T) {
	got := actionableError("Setup failed", errors.New("boom"))
	if got != "Setup failed: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestOptionString(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "email", Type: discordgo.ApplicationCommandOptionString, Value: "abc123@pitt.edu"},
	}
	if got := optionString(options, "email"); got != "abc123@pitt.edu" {
		t.Fatalf("unexpected value %q", got)
	}
	if got := optionString(options, "invite"); got != "" {
		t.Fatalf("expected empty for missing option, got %q", got)
	}
}

func TestOptionBool(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "drop-invite", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
	}
	if !optionBool(options, "drop-invite") {
		t.Fatal("expected true")
	}
	if optionBool(options, "missing") {
		t.Fatal("expected false for missing option")
	}
}

func TestValueOrDash(t *testing.T) {
	if got := valueOrDash(""); got != "-" {
		t.Fatalf("expected dash, got %q", got)
	}
	if got := valueOrDash("x"); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
}

func TestFAQTopicsAreSortedAndComplete(t *testing.T) {
	names := faqTopicNames()
	if len(names) != len(faqTopics) {
		t.Fatalf("expected %d topics, got %d", len(faqTopics), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("topics not sorted: %v", names)
		}
	}
	for _, name := range names {
		if faqTopics[name] == "" {
			t.Fatalf("topic %q has no answer", name)
		}
	}
}
