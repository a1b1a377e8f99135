// Package eventsync mirrors scheduled events from the hub server to
// every community server. Creations are held for staff confirmation;
// edits, status changes, and deletions propagate to the mirrored
// copies, which are matched by event name.
package eventsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"pittbot/internal/modules/opslog"
)

type Module struct {
	hubGuildID string
	commandsCh string
	logger     *zap.Logger
	ops        *opslog.Logger

	mu      sync.Mutex
	pending map[string]*discordgo.GuildScheduledEvent
}

func New(hubGuildID, commandsChannelID string, logger *zap.Logger, ops *opslog.Logger) *Module {
	return &Module{
		hubGuildID: hubGuildID,
		commandsCh: commandsChannelID,
		logger:     logger,
		ops:        ops,
		pending:    make(map[string]*discordgo.GuildScheduledEvent),
	}
}

// HandleCreate queues a newly created hub event and asks staff to
// confirm the mirror in the commands channel. Events created outside
// the hub are ignored.
func (m *Module) HandleCreate(s *discordgo.Session, event *discordgo.GuildScheduledEventCreate) {
	if event.GuildID != m.hubGuildID || m.commandsCh == "" {
		return
	}

	m.mu.Lock()
	m.pending[event.ID] = event.GuildScheduledEvent
	m.mu.Unlock()

	_, err := s.ChannelMessageSendComplex(m.commandsCh, &discordgo.MessageSend{
		Content: fmt.Sprintf("Mirror event **%s** to all community servers?", event.Name),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Mirror",
						Style:    discordgo.SuccessButton,
						CustomID: "eventsync_accept:" + event.ID,
					},
					discordgo.Button{
						Label:    "Skip",
						Style:    discordgo.DangerButton,
						CustomID: "eventsync_deny:" + event.ID,
					},
				},
			},
		},
	})
	if err != nil {
		m.logger.Warn("event mirror prompt failed", zap.String("event", event.Name), zap.Error(err))
	}
}

// Confirm mirrors a pending hub event to every other guild the session
// is in.
func (m *Module) Confirm(ctx context.Context, s *discordgo.Session, eventID string) error {
	m.mu.Lock()
	event, ok := m.pending[eventID]
	delete(m.pending, eventID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending event %s", eventID)
	}

	for _, guild := range s.State.Guilds {
		if guild.ID == m.hubGuildID {
			continue
		}
		if _, err := s.GuildScheduledEventCreate(guild.ID, mirrorParams(event)); err != nil {
			m.logger.Warn("event mirror failed",
				zap.String("guild_id", guild.ID),
				zap.String("event", event.Name),
				zap.Error(err))
			continue
		}
		m.ops.Info(ctx, guild.ID, "", "event_mirrored", event.Name)
	}
	return nil
}

// Deny drops a pending hub event without mirroring it.
func (m *Module) Deny(eventID string) {
	m.mu.Lock()
	delete(m.pending, eventID)
	m.mu.Unlock()
}

// HandleUpdate propagates hub event edits and status changes to the
// mirrored copies. Completed and canceled hub events remove their
// mirrors.
func (m *Module) HandleUpdate(ctx context.Context, s *discordgo.Session, event *discordgo.GuildScheduledEventUpdate) {
	if event.GuildID != m.hubGuildID {
		return
	}

	switch event.Status {
	case discordgo.GuildScheduledEventStatusCompleted, discordgo.GuildScheduledEventStatusCanceled:
		m.removeMirrors(ctx, s, event.Name)
		return
	}

	for _, guild := range s.State.Guilds {
		if guild.ID == m.hubGuildID {
			continue
		}
		mirror, err := findByName(s, guild.ID, event.Name)
		if err != nil || mirror == nil {
			continue
		}
		params := mirrorParams(event.GuildScheduledEvent)
		if event.Status == discordgo.GuildScheduledEventStatusActive {
			params.Status = discordgo.GuildScheduledEventStatusActive
		}
		if _, err := s.GuildScheduledEventEdit(guild.ID, mirror.ID, params); err != nil {
			m.logger.Warn("event mirror edit failed",
				zap.String("guild_id", guild.ID),
				zap.String("event", event.Name),
				zap.Error(err))
		}
	}
}

// HandleDelete removes the mirrored copies of a deleted hub event.
func (m *Module) HandleDelete(ctx context.Context, s *discordgo.Session, event *discordgo.GuildScheduledEventDelete) {
	if event.GuildID != m.hubGuildID {
		return
	}
	m.removeMirrors(ctx, s, event.Name)
}

func (m *Module) removeMirrors(ctx context.Context, s *discordgo.Session, name string) {
	for _, guild := range s.State.Guilds {
		if guild.ID == m.hubGuildID {
			continue
		}
		mirror, err := findByName(s, guild.ID, name)
		if err != nil || mirror == nil {
			continue
		}
		if err := s.GuildScheduledEventDelete(guild.ID, mirror.ID); err != nil {
			m.logger.Warn("event mirror delete failed",
				zap.String("guild_id", guild.ID),
				zap.String("event", name),
				zap.Error(err))
			continue
		}
		m.ops.Info(ctx, guild.ID, "", "event_mirror_removed", name)
	}
}

func findByName(s *discordgo.Session, guildID, name string) (*discordgo.GuildScheduledEvent, error) {
	events, err := s.GuildScheduledEvents(guildID, false)
	if err != nil {
		return nil, err
	}
	return MatchByName(events, name), nil
}

// MatchByName returns the first event with the given name, or nil.
func MatchByName(events []*discordgo.GuildScheduledEvent, name string) *discordgo.GuildScheduledEvent {
	for _, event := range events {
		if event.Name == name {
			return event
		}
	}
	return nil
}

func mirrorParams(event *discordgo.GuildScheduledEvent) *discordgo.GuildScheduledEventParams {
	start := event.ScheduledStartTime
	params := &discordgo.GuildScheduledEventParams{
		Name:               event.Name,
		Description:        event.Description,
		ScheduledStartTime: &start,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
	}
	if event.ScheduledEndTime != nil {
		end := *event.ScheduledEndTime
		params.ScheduledEndTime = &end
	} else {
		// External events require an end time.
		end := start.Add(2 * time.Hour)
		params.ScheduledEndTime = &end
	}
	if event.EntityMetadata.Location != "" {
		params.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{Location: event.EntityMetadata.Location}
	} else {
		params.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{Location: "See hub server"}
	}
	return params
}
