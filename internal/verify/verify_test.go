package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"pittbot/internal/invites"
	"pittbot/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestResolverCacheWarmsFromStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertInvite(ctx, storage.Invite{Code: "abc", GuildID: "g1", RoleID: "r1"}); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	lookups := 0
	resolver := NewResolver(store, func(guildID, roleID string) (string, error) {
		lookups++
		if roleID != "r1" {
			t.Fatalf("unexpected role lookup %q", roleID)
		}
		return "Community", nil
	})

	roleID, err := resolver.Resolve(ctx, "g1", "abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if roleID != "r1" {
		t.Fatalf("expected r1, got %q", roleID)
	}

	// Second resolve hits the cache; only the live role check repeats.
	if _, err := resolver.Resolve(ctx, "g1", "abc"); err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if lookups != 2 {
		t.Fatalf("expected 2 live lookups, got %d", lookups)
	}
}

func TestResolverNoBinding(t *testing.T) {
	store := newTestStore(t)
	resolver := NewResolver(store, func(guildID, roleID string) (string, error) {
		t.Fatal("lookup should not run without a binding")
		return "", nil
	})

	_, err := resolver.Resolve(context.Background(), "g1", "unknown")
	if !errors.Is(err, ErrNoBinding) {
		t.Fatalf("expected ErrNoBinding, got %v", err)
	}
}

func TestResolverRoleGone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertInvite(ctx, storage.Invite{Code: "abc", GuildID: "g1", RoleID: "r1"}); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	resolver := NewResolver(store, func(guildID, roleID string) (string, error) {
		return "", errors.New("unknown role")
	})

	_, err := resolver.Resolve(ctx, "g1", "abc")
	if !errors.Is(err, ErrRoleGone) {
		t.Fatalf("expected ErrRoleGone, got %v", err)
	}
}

func TestResolverBind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resolver := NewResolver(store, func(guildID, roleID string) (string, error) {
		return "Community", nil
	})
	if err := resolver.Bind(ctx, "g1", "abc", "r1"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	roleID, err := resolver.Resolve(ctx, "g1", "abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if roleID != "r1" {
		t.Fatalf("expected r1, got %q", roleID)
	}

	// The binding also survives a cold cache.
	fresh := NewResolver(store, func(guildID, roleID string) (string, error) {
		return "Community", nil
	})
	roleID, err = fresh.Resolve(ctx, "g1", "abc")
	if err != nil {
		t.Fatalf("resolve from store: %v", err)
	}
	if roleID != "r1" {
		t.Fatalf("expected r1 from store, got %q", roleID)
	}
}

func TestSessionOverride(t *testing.T) {
	sessions := NewSessionStore(0)

	sessions.SetOverride("u1", "abc")
	code, ok := sessions.TakeOverride("u1")
	if !ok || code != "abc" {
		t.Fatalf("expected override abc, got %q %v", code, ok)
	}

	// Overrides are single use.
	if _, ok := sessions.TakeOverride("u1"); ok {
		t.Fatalf("expected override to be consumed")
	}
}

func TestSessionLifecycle(t *testing.T) {
	sessions := NewSessionStore(0)
	sessions.Put(&Session{UserID: "u1", GuildID: "g1", Candidates: []invites.Snapshot{{Code: "a"}, {Code: "b"}}})

	session, ok := sessions.Get("u1")
	if !ok || len(session.Candidates) != 2 {
		t.Fatalf("unexpected session %+v %v", session, ok)
	}

	sessions.Delete("u1")
	if _, ok := sessions.Get("u1"); ok {
		t.Fatalf("expected session to be gone")
	}
}

func TestAmbiguousSessionExpires(t *testing.T) {
	sessions := NewSessionStore(time.Nanosecond)

	sessions.Put(&Session{UserID: "u1", GuildID: "g1", Candidates: []invites.Snapshot{{Code: "a"}, {Code: "b"}}})
	time.Sleep(time.Millisecond)
	if _, ok := sessions.Get("u1"); ok {
		t.Fatal("expected ambiguous session to expire")
	}

	// Settled sessions never expire on the ambiguity clock.
	sessions.Put(&Session{UserID: "u2", GuildID: "g1", Code: "a"})
	time.Sleep(time.Millisecond)
	if _, ok := sessions.Get("u2"); !ok {
		t.Fatal("expected settled session to survive")
	}
}

func TestValidEmail(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"abc123@pitt.edu", true},
		{"abc123@pitt.edu.forwarder.com", true},
		{"abc123@gmail.com", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidEmail(tc.email, "@pitt.edu"); got != tc.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestNickname(t *testing.T) {
	if got := Nickname("abc123@pitt.edu", ""); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
	if got := Nickname("abc123@pitt.edu", "Jordan"); got != "Jordan" {
		t.Fatalf("expected Jordan, got %q", got)
	}
	if got := Nickname("not-an-email", ""); got != "not-an-email" {
		t.Fatalf("expected raw value, got %q", got)
	}
}
