package antinuke

import (
	"context"
	"fmt"
	"sort"
	"time"

	"moodguard/internal/config"
	"moodguard/internal/modules/audit"
	"moodguard/internal/storage"
	"moodguard/internal/telemetry"
	"moodguard/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Actions interface {
	GuildChannels(guildID string) ([]*discordgo.Channel, error)
	ChannelDelete(channelID string) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string) (*discordgo.Message, error)
	CanSend(channelID string) bool
}

type SettingsStore interface {
	GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error)
	UpsertGuildSettings(ctx context.Context, settings storage.GuildSettings) error
}

type Module struct {
	cfg      config.SecurityConfig
	defaults storage.GuildSettings
	store    SettingsStore
	creates  *utils.WindowSet
	audit    *audit.Logger
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg config.SecurityConfig, defaults storage.GuildSettings, store SettingsStore, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		cfg:      cfg,
		defaults: defaults,
		store:    store,
		creates:  utils.NewWindowSet(time.Duration(cfg.NukeWindowSeconds) * time.Second),
		audit:    auditLogger,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Module) Enabled(ctx context.Context, guildID string) bool {
	settings, err := m.store.GetGuildSettings(ctx, guildID, m.defaults)
	if err != nil {
		m.logger.Warn("guild settings load failed", zap.String("guild_id", guildID), zap.Error(err))
		return m.defaults.NukeEnabled
	}
	return settings.NukeEnabled
}

// SetEnabled persists the toggle. A nil state flips the current value.
func (m *Module) SetEnabled(ctx context.Context, guildID string, state *bool) (bool, error) {
	settings, err := m.store.GetGuildSettings(ctx, guildID, m.defaults)
	if err != nil {
		return false, err
	}
	if state == nil {
		settings.NukeEnabled = !settings.NukeEnabled
	} else {
		settings.NukeEnabled = *state
	}
	if err := m.store.UpsertGuildSettings(ctx, settings); err != nil {
		return false, err
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, "", "nuke_toggle", fmt.Sprintf("enabled=%t", settings.NukeEnabled))
	return settings.NukeEnabled, nil
}

// HandleChannelCreate records a channel creation. When the burst threshold is reached it
// removes duplicated channels and returns how many were deleted.
func (m *Module) HandleChannelCreate(ctx context.Context, actions Actions, guildID string) (bool, int) {
	if guildID == "" || !m.Enabled(ctx, guildID) {
		return false, 0
	}

	count := m.creates.Add(guildID, m.now())
	if count < m.cfg.NukeChannelCreates {
		return false, 0
	}

	telemetry.CountGuard("nuke")
	detail := fmt.Sprintf("type=NUKE rule=%dcreates/%ds value=%dcreates threshold=%d", m.cfg.NukeChannelCreates, m.cfg.NukeWindowSeconds, count, m.cfg.NukeChannelCreates)
	m.audit.Log(ctx, audit.LevelCrit, guildID, "", "anti_nuke", detail)

	deleted, err := m.CleanDuplicates(ctx, actions, guildID)
	if err != nil {
		m.logger.Warn("nuke cleanup failed", zap.String("guild_id", guildID), zap.Error(err))
		return true, 0
	}
	if deleted > 0 {
		if channels, err := actions.GuildChannels(guildID); err == nil {
			announce(actions, channels, fmt.Sprintf("**ANTI-NUKE** - deleted %d duplicate channels.", deleted))
		}
	}
	return true, deleted
}

// CleanDuplicates deletes every channel whose name appears at least the duplicate
// threshold times, keeping the earliest created one per name.
func (m *Module) CleanDuplicates(ctx context.Context, actions Actions, guildID string) (int, error) {
	channels, err := actions.GuildChannels(guildID)
	if err != nil {
		return 0, err
	}

	byName := make(map[string][]*discordgo.Channel)
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		byName[channel.Name] = append(byName[channel.Name], channel)
	}

	deleted := 0
	for name, group := range byName {
		if len(group) < m.cfg.NukeDuplicateThreshold {
			continue
		}
		sortByCreation(group)
		for _, channel := range group[1:] {
			if _, err := actions.ChannelDelete(channel.ID); err != nil {
				m.logger.Warn("duplicate channel delete failed", zap.String("guild_id", guildID), zap.String("channel", name), zap.Error(err))
				continue
			}
			deleted++
		}
	}
	if deleted > 0 {
		m.audit.Log(ctx, audit.LevelWarn, guildID, "", "nuke_cleanup", fmt.Sprintf("deleted=%d", deleted))
	}
	return deleted, nil
}

func (m *Module) Sweep(now time.Time) int {
	return m.creates.Sweep(now)
}

func sortByCreation(channels []*discordgo.Channel) {
	created := make(map[string]time.Time, len(channels))
	for _, channel := range channels {
		ts, err := discordgo.SnowflakeTimestamp(channel.ID)
		if err != nil {
			ts = time.Time{}
		}
		created[channel.ID] = ts
	}
	sort.SliceStable(channels, func(i, j int) bool {
		a, b := created[channels[i].ID], created[channels[j].ID]
		if a.Equal(b) {
			return channels[i].ID < channels[j].ID
		}
		return a.Before(b)
	})
}

func announce(actions Actions, channels []*discordgo.Channel, content string) bool {
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel != nil && (channel.Type == discordgo.ChannelTypeGuildText || channel.Type == discordgo.ChannelTypeGuildNews) {
			text = append(text, channel)
		}
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })
	for _, channel := range text {
		if !actions.CanSend(channel.ID) {
			continue
		}
		if _, err := actions.ChannelMessageSend(channel.ID, content); err == nil {
			return true
		}
	}
	return false
}
