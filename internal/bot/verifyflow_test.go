package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestModalInputs(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: customIDVerifyModal,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "email", Value: "abc123@pitt.edu"},
				},
			},
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "preferred", Value: "Alex"},
				},
			},
		},
	}

	inputs := modalInputs(data)
	if inputs["email"] != "abc123@pitt.edu" {
		t.Fatalf("unexpected email %q", inputs["email"])
	}
	if inputs["preferred"] != "Alex" {
		t.Fatalf("unexpected preferred name %q", inputs["preferred"])
	}
}

func TestModalInputsOptionalFieldLeftBlank(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "email", Value: "abc123@pitt.edu"},
				},
			},
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "preferred", Value: ""},
				},
			},
		},
	}

	inputs := modalInputs(data)
	if inputs["preferred"] != "" {
		t.Fatalf("expected empty preferred name, got %q", inputs["preferred"])
	}
}

func TestExtraRoleIDs(t *testing.T) {
	if got := extraRoleIDs("ra", "res", true); len(got) != 1 || got[0] != "ra" {
		t.Fatalf("first use should grant only the RA role, got %v", got)
	}
	if got := extraRoleIDs("ra", "res", false); len(got) != 1 || got[0] != "res" {
		t.Fatalf("later uses should grant only the residents role, got %v", got)
	}
	if got := extraRoleIDs("", "res", true); got != nil {
		t.Fatalf("missing RA role should grant nothing on first use, got %v", got)
	}
	if got := extraRoleIDs("ra", "", false); got != nil {
		t.Fatalf("missing residents role should grant nothing, got %v", got)
	}
}
