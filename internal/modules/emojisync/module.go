// Package emojisync keeps custom emoji consistent across the hub and
// community servers.
package emojisync

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Emoji is the subset of emoji state the differ cares about.
type Emoji struct {
	ID       string
	Name     string
	Animated bool
}

// Diff describes what changed between two emoji lists for one guild.
type Diff struct {
	Added   []Emoji
	Removed []Emoji
	Renamed []Rename
}

type Rename struct {
	ID   string
	From string
	To   string
}

// Compute diffs an old emoji list against the current one. Emoji are
// tracked by ID, so a rename is a matching ID with a different name.
func Compute(old, current []Emoji) Diff {
	oldByID := make(map[string]Emoji, len(old))
	for _, e := range old {
		oldByID[e.ID] = e
	}
	currentByID := make(map[string]Emoji, len(current))
	for _, e := range current {
		currentByID[e.ID] = e
	}

	var diff Diff
	for _, e := range current {
		prev, ok := oldByID[e.ID]
		if !ok {
			diff.Added = append(diff.Added, e)
			continue
		}
		if prev.Name != e.Name {
			diff.Renamed = append(diff.Renamed, Rename{ID: e.ID, From: prev.Name, To: e.Name})
		}
	}
	for _, e := range old {
		if _, ok := currentByID[e.ID]; !ok {
			diff.Removed = append(diff.Removed, e)
		}
	}
	return diff
}

type Module struct {
	hubGuildID string
	commandsCh string
	logger     *zap.Logger
	client     *http.Client

	mu      sync.Mutex
	cache   map[string][]Emoji
	pending map[string]Diff
	// synced suppresses the echo when our own propagation fires another
	// emoji update event; keys are guildID+":"+emojiName.
	synced map[string]bool
}

func New(hubGuildID, commandsChannelID string, logger *zap.Logger) *Module {
	return &Module{
		hubGuildID: hubGuildID,
		commandsCh: commandsChannelID,
		logger:     logger,
		client:     http.DefaultClient,
		cache:      make(map[string][]Emoji),
		pending:    make(map[string]Diff),
		synced:     make(map[string]bool),
	}
}

// Seed records a guild's current emoji without treating them as changes.
func (m *Module) Seed(guildID string, emojis []*discordgo.Emoji) {
	m.mu.Lock()
	m.cache[guildID] = fromDiscord(emojis)
	m.mu.Unlock()
}

// HandleUpdate processes an emoji list change. Hub changes propagate to
// every other guild immediately; community changes are queued for staff
// confirmation.
func (m *Module) HandleUpdate(ctx context.Context, s *discordgo.Session, event *discordgo.GuildEmojisUpdate) {
	current := fromDiscord(event.Emojis)

	m.mu.Lock()
	previous := m.cache[event.GuildID]
	m.cache[event.GuildID] = current
	m.mu.Unlock()

	diff := m.filterEchoes(event.GuildID, Compute(previous, current))
	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Renamed) == 0 {
		return
	}

	if event.GuildID == m.hubGuildID {
		m.apply(ctx, s, event.GuildID, diff)
		return
	}
	m.prompt(s, event.GuildID, diff)
}

// filterEchoes drops diff entries caused by our own propagation.
func (m *Module) filterEchoes(guildID string, diff Diff) Diff {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out Diff
	for _, e := range diff.Added {
		key := guildID + ":" + e.Name
		if m.synced[key] {
			delete(m.synced, key)
			continue
		}
		out.Added = append(out.Added, e)
	}
	for _, e := range diff.Removed {
		key := guildID + ":-" + e.Name
		if m.synced[key] {
			delete(m.synced, key)
			continue
		}
		out.Removed = append(out.Removed, e)
	}
	for _, r := range diff.Renamed {
		key := guildID + ":" + r.From + ">" + r.To
		if m.synced[key] {
			delete(m.synced, key)
			continue
		}
		out.Renamed = append(out.Renamed, r)
	}
	return out
}

func (m *Module) prompt(s *discordgo.Session, guildID string, diff Diff) {
	if m.commandsCh == "" {
		return
	}

	m.mu.Lock()
	m.pending[guildID] = diff
	m.mu.Unlock()

	summary := ""
	for _, e := range diff.Added {
		summary += fmt.Sprintf("+ :%s:\n", e.Name)
	}
	for _, e := range diff.Removed {
		summary += fmt.Sprintf("- :%s:\n", e.Name)
	}
	for _, r := range diff.Renamed {
		summary += fmt.Sprintf(":%s: renamed to :%s:\n", r.From, r.To)
	}

	source := "`" + guildID + "`"
	if guild, err := s.State.Guild(guildID); err == nil && guild.Name != "" {
		source = guild.Name
	}

	_, err := s.ChannelMessageSendComplex(m.commandsCh, &discordgo.MessageSend{
		Content: fmt.Sprintf("Emoji changed on %s. Sync everywhere?\n%s", source, summary),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Sync", Style: discordgo.SuccessButton, CustomID: "emojisync_accept:" + guildID},
					discordgo.Button{Label: "Ignore", Style: discordgo.DangerButton, CustomID: "emojisync_deny:" + guildID},
				},
			},
		},
	})
	if err != nil {
		m.logger.Warn("emoji sync prompt failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// Confirm applies a community guild's pending emoji changes everywhere.
func (m *Module) Confirm(ctx context.Context, s *discordgo.Session, sourceGuildID string) error {
	m.mu.Lock()
	diff, ok := m.pending[sourceGuildID]
	delete(m.pending, sourceGuildID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending emoji changes for guild %s", sourceGuildID)
	}
	m.apply(ctx, s, sourceGuildID, diff)
	return nil
}

// Deny drops a community guild's pending emoji changes.
func (m *Module) Deny(sourceGuildID string) {
	m.mu.Lock()
	delete(m.pending, sourceGuildID)
	m.mu.Unlock()
}

func (m *Module) apply(ctx context.Context, s *discordgo.Session, sourceGuildID string, diff Diff) {
	for _, guild := range s.State.Guilds {
		if guild.ID == sourceGuildID {
			continue
		}
		existing, err := s.GuildEmojis(guild.ID)
		if err != nil {
			m.logger.Warn("emoji list failed", zap.String("guild_id", guild.ID), zap.Error(err))
			continue
		}
		byName := make(map[string]*discordgo.Emoji, len(existing))
		for _, e := range existing {
			byName[e.Name] = e
		}

		for _, added := range diff.Added {
			if _, ok := byName[added.Name]; ok {
				continue
			}
			image, err := m.fetchImage(ctx, added)
			if err != nil {
				m.logger.Warn("emoji image fetch failed", zap.String("emoji", added.Name), zap.Error(err))
				continue
			}
			m.markSynced(guild.ID+":"+added.Name)
			if _, err := s.GuildEmojiCreate(guild.ID, &discordgo.EmojiParams{Name: added.Name, Image: image}); err != nil {
				m.logger.Warn("emoji create failed", zap.String("guild_id", guild.ID), zap.String("emoji", added.Name), zap.Error(err))
			}
		}
		for _, removed := range diff.Removed {
			target, ok := byName[removed.Name]
			if !ok {
				continue
			}
			m.markSynced(guild.ID+":-"+removed.Name)
			if err := s.GuildEmojiDelete(guild.ID, target.ID); err != nil {
				m.logger.Warn("emoji delete failed", zap.String("guild_id", guild.ID), zap.String("emoji", removed.Name), zap.Error(err))
			}
		}
		for _, renamed := range diff.Renamed {
			target, ok := byName[renamed.From]
			if !ok {
				continue
			}
			m.markSynced(guild.ID+":"+renamed.From+">"+renamed.To)
			if _, err := s.GuildEmojiEdit(guild.ID, target.ID, &discordgo.EmojiParams{Name: renamed.To}); err != nil {
				m.logger.Warn("emoji rename failed", zap.String("guild_id", guild.ID), zap.String("emoji", renamed.From), zap.Error(err))
			}
		}
	}
}

func (m *Module) markSynced(key string) {
	m.mu.Lock()
	m.synced[key] = true
	m.mu.Unlock()
}

func (m *Module) fetchImage(ctx context.Context, emoji Emoji) (string, error) {
	ext, mime := "png", "image/png"
	if emoji.Animated {
		ext, mime = "gif", "image/gif"
	}
	url := fmt.Sprintf("https://cdn.discordapp.com/emojis/%s.%s", emoji.ID, ext)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("emoji fetch: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

func fromDiscord(emojis []*discordgo.Emoji) []Emoji {
	out := make([]Emoji, 0, len(emojis))
	for _, e := range emojis {
		out = append(out, Emoji{ID: e.ID, Name: e.Name, Animated: e.Animated})
	}
	return out
}
