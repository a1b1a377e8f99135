package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned by single-row lookups when no record exists.
var ErrNotFound = errors.New("storage: not found")

type Store struct {
	db *sql.DB
}

// User is a persisted verification record, keyed by Discord user ID.
type User struct {
	ID        string
	Username  string
	Email     string
	Verified  bool
	IsRA      bool
	Community string
}

// Guild tracks per-server setup state.
type Guild struct {
	ID               string
	IsSetup          bool
	RARoleID         string
	LandingChannelID string
}

// Invite binds an invite code to the community role it grants.
type Invite struct {
	Code    string
	GuildID string
	RoleID  string
}

// Category binds a provisioned category channel to its community role.
type Category struct {
	ID     string
	RoleID string
}

// VerifyingUser records the invite attributed to a user whose
// verification is still in flight, so the association survives restarts.
type VerifyingUser struct {
	ID         string
	InviteCode string
	CreatedAt  time.Time
}

type OpsLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, verified, is_ra, community
		FROM users WHERE id = ?`, id)

	var user User
	var verified, isRA int
	err := row.Scan(&user.ID, &user.Username, &user.Email, &verified, &isRA, &user.Community)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Verified = verified == 1
	user.IsRA = isRA == 1
	return user, nil
}

func (s *Store) UpsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, verified, is_ra, community)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			verified = excluded.verified,
			is_ra = excluded.is_ra,
			community = excluded.community
	`, user.ID, user.Username, user.Email, boolToInt(user.Verified), boolToInt(user.IsRA), user.Community)
	return err
}

// DeleteUser removes a user record and reports whether a row existed.
func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) GetGuild(ctx context.Context, id string) (Guild, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, is_setup, ra_role_id, landing_channel_id
		FROM guilds WHERE id = ?`, id)

	var guild Guild
	var isSetup int
	err := row.Scan(&guild.ID, &isSetup, &guild.RARoleID, &guild.LandingChannelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Guild{}, ErrNotFound
		}
		return Guild{}, err
	}
	guild.IsSetup = isSetup == 1
	return guild, nil
}

func (s *Store) UpsertGuild(ctx context.Context, guild Guild) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (id, is_setup, ra_role_id, landing_channel_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_setup = excluded.is_setup,
			ra_role_id = excluded.ra_role_id,
			landing_channel_id = excluded.landing_channel_id
	`, guild.ID, boolToInt(guild.IsSetup), guild.RARoleID, guild.LandingChannelID)
	return err
}

func (s *Store) GetInvite(ctx context.Context, code string) (Invite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT code, guild_id, role_id FROM invites WHERE code = ?`, code)

	var invite Invite
	err := row.Scan(&invite.Code, &invite.GuildID, &invite.RoleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}
	return invite, nil
}

func (s *Store) UpsertInvite(ctx context.Context, invite Invite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invites (code, guild_id, role_id)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			guild_id = excluded.guild_id,
			role_id = excluded.role_id
	`, invite.Code, invite.GuildID, invite.RoleID)
	return err
}

func (s *Store) ListInvites(ctx context.Context, guildID string) ([]Invite, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, guild_id, role_id FROM invites WHERE guild_id = ? ORDER BY code`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []Invite
	for rows.Next() {
		var invite Invite
		if err := rows.Scan(&invite.Code, &invite.GuildID, &invite.RoleID); err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, role_id FROM categories WHERE id = ?`, id)

	var category Category
	err := row.Scan(&category.ID, &category.RoleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	return category, nil
}

func (s *Store) UpsertCategory(ctx context.Context, category Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, role_id)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET role_id = excluded.role_id
	`, category.ID, category.RoleID)
	return err
}

func (s *Store) GetVerifyingUser(ctx context.Context, id string) (VerifyingUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, invite_code, created_at FROM verifying_users WHERE id = ?`, id)

	var verifying VerifyingUser
	var created int64
	err := row.Scan(&verifying.ID, &verifying.InviteCode, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VerifyingUser{}, ErrNotFound
		}
		return VerifyingUser{}, err
	}
	verifying.CreatedAt = time.Unix(created, 0)
	return verifying, nil
}

func (s *Store) UpsertVerifyingUser(ctx context.Context, verifying VerifyingUser) error {
	created := verifying.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifying_users (id, invite_code, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invite_code = excluded.invite_code,
			created_at = excluded.created_at
	`, verifying.ID, verifying.InviteCode, created.Unix())
	return err
}

func (s *Store) DeleteVerifyingUser(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM verifying_users WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteStaleVerifyingUsers drops pending-verification rows older than
// the cutoff. Abandoned flows are re-triggerable from scratch, so the
// rows carry no value past their TTL.
func (s *Store) DeleteStaleVerifyingUsers(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM verifying_users WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) AddOpsLog(ctx context.Context, log OpsLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ops_logs (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListOpsLogs(ctx context.Context, guildID string, since time.Time) ([]OpsLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM ops_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []OpsLog
	for rows.Next() {
		var log OpsLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupOpsLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM ops_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
