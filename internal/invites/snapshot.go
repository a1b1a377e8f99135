// Package invites tracks per-guild invite usage and attributes new
// members to the invite they joined through by diffing snapshots of
// the guild's invite list.
package invites

import "sync"

// Snapshot records one invite's state at observation time.
type Snapshot struct {
	Code string
	Uses int
}

// SnapshotStore holds the last observed invite list for each guild.
// Snapshots are replaced wholesale on refresh so a reader never sees
// a partially updated list.
type SnapshotStore struct {
	mu     sync.RWMutex
	guilds map[string][]Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{guilds: make(map[string][]Snapshot)}
}

// Get returns the stored snapshot for a guild. The returned slice is a
// copy and safe to retain.
func (s *SnapshotStore) Get(guildID string) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.guilds[guildID]
	if !ok {
		return nil
	}
	out := make([]Snapshot, len(stored))
	copy(out, stored)
	return out
}

// Set replaces the stored snapshot for a guild.
func (s *SnapshotStore) Set(guildID string, snapshot []Snapshot) {
	stored := make([]Snapshot, len(snapshot))
	copy(stored, snapshot)

	s.mu.Lock()
	s.guilds[guildID] = stored
	s.mu.Unlock()
}

// Forget drops a guild's snapshot, used when the bot leaves a guild.
func (s *SnapshotStore) Forget(guildID string) {
	s.mu.Lock()
	delete(s.guilds, guildID)
	s.mu.Unlock()
}
