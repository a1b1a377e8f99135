package eventsync

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func TestMatchByName(t *testing.T) {
	events := []*discordgo.GuildScheduledEvent{
		{ID: "1", Name: "Movie Night"},
		{ID: "2", Name: "Study Hall"},
	}

	if got := MatchByName(events, "Study Hall"); got == nil || got.ID != "2" {
		t.Fatalf("expected event 2, got %v", got)
	}
	if got := MatchByName(events, "Yoga"); got != nil {
		t.Fatalf("expected nil for unknown name, got %v", got)
	}
}

func TestMirrorParamsDefaultsEndTime(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	event := &discordgo.GuildScheduledEvent{
		Name:               "Movie Night",
		ScheduledStartTime: start,
	}

	params := mirrorParams(event)
	if params.ScheduledEndTime == nil {
		t.Fatal("expected a default end time")
	}
	if !params.ScheduledEndTime.After(start) {
		t.Fatalf("end %v must be after start %v", params.ScheduledEndTime, start)
	}
	if params.EntityMetadata == nil || params.EntityMetadata.Location == "" {
		t.Fatal("expected a default location")
	}
}

func TestMirrorParamsCopiesLocation(t *testing.T) {
	end := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)
	event := &discordgo.GuildScheduledEvent{
		Name:               "Movie Night",
		ScheduledStartTime: end.Add(-2 * time.Hour),
		ScheduledEndTime:   &end,
		EntityMetadata:     discordgo.GuildScheduledEventEntityMetadata{Location: "Towers Lobby"},
	}

	params := mirrorParams(event)
	if params.EntityMetadata.Location != "Towers Lobby" {
		t.Fatalf("expected location to carry over, got %q", params.EntityMetadata.Location)
	}
	if params.ScheduledEndTime == nil || !params.ScheduledEndTime.Equal(end) {
		t.Fatalf("expected end time to carry over, got %v", params.ScheduledEndTime)
	}
}

func TestPendingLifecycle(t *testing.T) {
	m := New("hub", "cmds", zap.NewNop(), nil)
	m.pending["42"] = &discordgo.GuildScheduledEvent{ID: "42", Name: "Movie Night"}

	m.Deny("42")
	if _, ok := m.pending["42"]; ok {
		t.Fatal("expected pending event to be dropped")
	}
}
