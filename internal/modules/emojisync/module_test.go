package emojisync

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func TestComputeAdded(t *testing.T) {
	old := []Emoji{{ID: "1", Name: "panther"}}
	current := []Emoji{{ID: "1", Name: "panther"}, {ID: "2", Name: "cathedral"}}

	diff := Compute(old, current)
	if len(diff.Added) != 1 || diff.Added[0].Name != "cathedral" {
		t.Fatalf("unexpected added %v", diff.Added)
	}
	if len(diff.Removed) != 0 || len(diff.Renamed) != 0 {
		t.Fatalf("unexpected diff %+v", diff)
	}
}

func TestComputeRemoved(t *testing.T) {
	old := []Emoji{{ID: "1", Name: "panther"}, {ID: "2", Name: "cathedral"}}
	current := []Emoji{{ID: "1", Name: "panther"}}

	diff := Compute(old, current)
	if len(diff.Removed) != 1 || diff.Removed[0].Name != "cathedral" {
		t.Fatalf("unexpected removed %v", diff.Removed)
	}
}

func TestComputeRenamed(t *testing.T) {
	old := []Emoji{{ID: "1", Name: "panther"}}
	current := []Emoji{{ID: "1", Name: "roc"}}

	diff := Compute(old, current)
	if len(diff.Renamed) != 1 {
		t.Fatalf("expected 1 rename, got %+v", diff)
	}
	if diff.Renamed[0].From != "panther" || diff.Renamed[0].To != "roc" {
		t.Fatalf("unexpected rename %+v", diff.Renamed[0])
	}
	if len(diff.Added) != 0 || len(diff.Removed) != 0 {
		t.Fatalf("rename must not count as add or remove: %+v", diff)
	}
}

func TestFilterEchoes(t *testing.T) {
	m := New("hub", "cmds", zap.NewNop())
	m.markSynced("g1:cathedral")

	diff := Diff{Added: []Emoji{{ID: "2", Name: "cathedral"}, {ID: "3", Name: "roc"}}}
	filtered := m.filterEchoes("g1", diff)
	if len(filtered.Added) != 1 || filtered.Added[0].Name != "roc" {
		t.Fatalf("expected only roc to survive, got %v", filtered.Added)
	}

	// The marker is consumed; the same add from a user later is real.
	filtered = m.filterEchoes("g1", Diff{Added: []Emoji{{ID: "4", Name: "cathedral"}}})
	if len(filtered.Added) != 1 {
		t.Fatalf("expected echo marker to be single use, got %v", filtered.Added)
	}
}

func TestSeedSuppressesInitialDiff(t *testing.T) {
	m := New("hub", "cmds", zap.NewNop())
	m.Seed("g1", []*discordgo.Emoji{{ID: "1", Name: "panther"}})

	m.mu.Lock()
	cached := m.cache["g1"]
	m.mu.Unlock()

	if len(cached) != 1 || cached[0].Name != "panther" {
		t.Fatalf("unexpected cache %v", cached)
	}
	if diff := Compute(cached, cached); len(diff.Added)+len(diff.Removed)+len(diff.Renamed) != 0 {
		t.Fatalf("seeded state must diff clean, got %+v", diff)
	}
}
