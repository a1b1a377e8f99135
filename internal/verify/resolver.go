// Package verify implements the resident verification pipeline: mapping
// the invite a member joined through to a community role, collecting and
// validating their university email, and tracking in-flight sessions.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pittbot/internal/storage"
)

var (
	// ErrNoBinding means no community role was ever linked to the invite.
	ErrNoBinding = errors.New("verify: invite has no role binding")

	// ErrRoleGone means a binding exists but the role was deleted from
	// the guild. Verification must stop rather than invent a role.
	ErrRoleGone = errors.New("verify: bound role no longer exists")
)

// RoleLookup reports whether a role currently exists in a guild,
// returning its name. Implemented by the bot over the live session.
type RoleLookup func(guildID, roleID string) (string, error)

// Resolver maps invite codes to community role IDs, consulting an
// in-memory cache before the database. A database hit warms the cache;
// a binding whose role vanished is surfaced as ErrRoleGone and is never
// recreated here.
type Resolver struct {
	store  *storage.Store
	lookup RoleLookup

	mu    sync.RWMutex
	cache map[string]string
}

func NewResolver(store *storage.Store, lookup RoleLookup) *Resolver {
	return &Resolver{
		store:  store,
		lookup: lookup,
		cache:  make(map[string]string),
	}
}

// Bind records an invite-to-role mapping in both cache and store.
func (r *Resolver) Bind(ctx context.Context, guildID, code, roleID string) error {
	if err := r.store.UpsertInvite(ctx, storage.Invite{Code: code, GuildID: guildID, RoleID: roleID}); err != nil {
		return fmt.Errorf("bind invite %s: %w", code, err)
	}
	r.mu.Lock()
	r.cache[code] = roleID
	r.mu.Unlock()
	return nil
}

// Warm preloads the cache from persisted bindings for a guild.
func (r *Resolver) Warm(ctx context.Context, guildID string) error {
	bindings, err := r.store.ListInvites(ctx, guildID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	for _, binding := range bindings {
		r.cache[binding.Code] = binding.RoleID
	}
	r.mu.Unlock()
	return nil
}

// Resolve returns the community role bound to an invite code, checking
// that the role still exists in the guild.
func (r *Resolver) Resolve(ctx context.Context, guildID, code string) (string, error) {
	r.mu.RLock()
	roleID, ok := r.cache[code]
	r.mu.RUnlock()

	if !ok {
		binding, err := r.store.GetInvite(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoBinding
		}
		if err != nil {
			return "", fmt.Errorf("resolve invite %s: %w", code, err)
		}
		roleID = binding.RoleID
		r.mu.Lock()
		r.cache[code] = roleID
		r.mu.Unlock()
	}

	if _, err := r.lookup(guildID, roleID); err != nil {
		return "", ErrRoleGone
	}
	return roleID, nil
}
