package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := User{
		ID:        "100",
		Username:  "jsmith",
		Email:     "jas123@pitt.edu",
		Verified:  true,
		IsRA:      false,
		Community: "RA Jordan's Community",
	}
	if err := store.UpsertUser(ctx, user); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	user.Email = "jas999@pitt.edu"
	user.IsRA = true
	if err := store.UpsertUser(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}

	got, err := store.GetUser(ctx, "100")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != "jas999@pitt.edu" {
		t.Fatalf("expected updated email, got %q", got.Email)
	}
	if !got.IsRA || !got.Verified {
		t.Fatalf("expected verified RA, got %+v", got)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertUser(ctx, User{ID: "7", Username: "x"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	dropped, err := store.DeleteUser(ctx, "7")
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if !dropped {
		t.Fatalf("expected a row to be dropped")
	}

	dropped, err = store.DeleteUser(ctx, "7")
	if err != nil {
		t.Fatalf("delete user again: %v", err)
	}
	if dropped {
		t.Fatalf("expected no row on second delete")
	}
}

func TestUpsertGuild(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	guild := Guild{ID: "g1", IsSetup: true, RARoleID: "r1", LandingChannelID: "c1"}
	if err := store.UpsertGuild(ctx, guild); err != nil {
		t.Fatalf("upsert guild: %v", err)
	}

	guild.LandingChannelID = "c2"
	if err := store.UpsertGuild(ctx, guild); err != nil {
		t.Fatalf("update guild: %v", err)
	}

	got, err := store.GetGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("get guild: %v", err)
	}
	if got.LandingChannelID != "c2" {
		t.Fatalf("expected landing channel c2, got %q", got.LandingChannelID)
	}
	if !got.IsSetup {
		t.Fatalf("expected guild to be set up")
	}
}

func TestInviteRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertInvite(ctx, Invite{Code: "abc123", GuildID: "g1", RoleID: "r9"}); err != nil {
		t.Fatalf("upsert invite: %v", err)
	}

	got, err := store.GetInvite(ctx, "abc123")
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if got.RoleID != "r9" || got.GuildID != "g1" {
		t.Fatalf("unexpected invite %+v", got)
	}

	invites, err := store.ListInvites(ctx, "g1")
	if err != nil {
		t.Fatalf("list invites: %v", err)
	}
	if len(invites) != 1 {
		t.Fatalf("expected 1 invite, got %d", len(invites))
	}
}

func TestVerifyingUserLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	verifying := VerifyingUser{ID: "55", InviteCode: "abc123", CreatedAt: time.Now().Add(-72 * time.Hour)}
	if err := store.UpsertVerifyingUser(ctx, verifying); err != nil {
		t.Fatalf("upsert verifying user: %v", err)
	}

	got, err := store.GetVerifyingUser(ctx, "55")
	if err != nil {
		t.Fatalf("get verifying user: %v", err)
	}
	if got.InviteCode != "abc123" {
		t.Fatalf("expected invite abc123, got %q", got.InviteCode)
	}

	pruned, err := store.DeleteStaleVerifyingUsers(ctx, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("delete stale verifying users: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}

	if _, err := store.GetVerifyingUser(ctx, "55"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after prune, got %v", err)
	}
}

func TestOpsLogRetention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := OpsLog{GuildID: "g1", Level: "INFO", Event: "verify", CreatedAt: time.Now().AddDate(0, 0, -60)}
	recent := OpsLog{GuildID: "g1", Level: "WARN", Event: "verify", CreatedAt: time.Now()}
	if err := store.AddOpsLog(ctx, old); err != nil {
		t.Fatalf("add old log: %v", err)
	}
	if err := store.AddOpsLog(ctx, recent); err != nil {
		t.Fatalf("add recent log: %v", err)
	}

	if err := store.CleanupOpsLogs(ctx, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	logs, err := store.ListOpsLogs(ctx, "g1", time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log after cleanup, got %d", len(logs))
	}
	if logs[0].Level != "WARN" {
		t.Fatalf("expected the recent log to survive, got %+v", logs[0])
	}
}
