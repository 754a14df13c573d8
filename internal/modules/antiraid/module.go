package antiraid

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"moodguard/internal/config"
	"moodguard/internal/modules/audit"
	"moodguard/internal/playbook"
	"moodguard/internal/storage"
	"moodguard/internal/telemetry"
	"moodguard/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const memberPageSize = 1000

// Actions is the slice of the gateway a raid response needs.
type Actions interface {
	GuildMembers(guildID, after string, limit int) ([]*discordgo.Member, error)
	GuildMemberDelete(guildID, userID string) error
	GuildChannels(guildID string) ([]*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error
	ChannelPermissionDelete(channelID, targetID string) error
	ChannelMessageSend(channelID, content string) (*discordgo.Message, error)
	CanSend(channelID string) bool
}

type SettingsStore interface {
	GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error)
	UpsertGuildSettings(ctx context.Context, settings storage.GuildSettings) error
}

type Result struct {
	Triggered bool
	Kicked    int
	Locked    int
}

type overwrite struct {
	allow   int64
	deny    int64
	present bool
}

type Module struct {
	mu        sync.Mutex
	cfg       config.SecurityConfig
	defaults  storage.GuildSettings
	store     SettingsStore
	joins     *utils.WindowSet
	playbook  *playbook.Engine
	audit     *audit.Logger
	logger    *zap.Logger
	now       func() time.Time
	snapshots map[string]map[string]overwrite
}

func New(cfg config.SecurityConfig, defaults storage.GuildSettings, store SettingsStore, playbookEngine *playbook.Engine, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		cfg:       cfg,
		defaults:  defaults,
		store:     store,
		joins:     utils.NewWindowSet(time.Duration(cfg.RaidWindowSeconds) * time.Second),
		playbook:  playbookEngine,
		audit:     auditLogger,
		logger:    logger,
		now:       time.Now,
		snapshots: make(map[string]map[string]overwrite),
	}
}

func (m *Module) window() time.Duration {
	return time.Duration(m.cfg.RaidWindowSeconds) * time.Second
}

// Enabled reports whether raid protection is on for the guild.
func (m *Module) Enabled(ctx context.Context, guildID string) bool {
	settings, err := m.store.GetGuildSettings(ctx, guildID, m.defaults)
	if err != nil {
		m.logger.Warn("guild settings load failed", zap.String("guild_id", guildID), zap.Error(err))
		return m.defaults.RaidEnabled
	}
	return settings.RaidEnabled
}

// SetEnabled persists the toggle. A nil state flips the current value.
func (m *Module) SetEnabled(ctx context.Context, guildID string, state *bool) (bool, error) {
	settings, err := m.store.GetGuildSettings(ctx, guildID, m.defaults)
	if err != nil {
		return false, err
	}
	if state == nil {
		settings.RaidEnabled = !settings.RaidEnabled
	} else {
		settings.RaidEnabled = *state
	}
	if err := m.store.UpsertGuildSettings(ctx, settings); err != nil {
		return false, err
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, "", "raid_toggle", fmt.Sprintf("enabled=%t", settings.RaidEnabled))
	return settings.RaidEnabled, nil
}

// HandleJoin feeds one member join into the detector. During lockdown the joiner is
// kicked and the detector is left untouched.
func (m *Module) HandleJoin(ctx context.Context, actions Actions, guildID string, member *discordgo.Member) Result {
	if guildID == "" || member == nil || member.User == nil {
		return Result{}
	}
	if !m.Enabled(ctx, guildID) {
		return Result{}
	}

	if m.playbook.IsLockdown(guildID).Lockdown {
		if err := actions.GuildMemberDelete(guildID, member.User.ID); err != nil {
			m.logger.Warn("lockdown kick failed", zap.String("guild_id", guildID), zap.String("user_id", member.User.ID), zap.Error(err))
		}
		m.audit.Log(ctx, audit.LevelWarn, guildID, member.User.ID, "raid_lockdown_kick", "joined during lockdown")
		return Result{Kicked: 1}
	}

	now := m.now()
	count := m.joins.Add(guildID, now)
	if count < m.cfg.RaidJoins {
		return Result{}
	}

	detail := fmt.Sprintf("type=RAID rule=%djoins/%ds value=%djoins threshold=%d", m.cfg.RaidJoins, m.cfg.RaidWindowSeconds, count, m.cfg.RaidJoins)
	m.audit.Log(ctx, audit.LevelCrit, guildID, member.User.ID, "anti_raid", detail)
	return m.respond(ctx, actions, guildID, now)
}

func (m *Module) respond(ctx context.Context, actions Actions, guildID string, now time.Time) Result {
	if !m.playbook.TriggerLockdown(ctx, guildID, func(rctx context.Context) { m.unlock(rctx, actions, guildID) }) {
		return Result{}
	}
	telemetry.CountGuard("raid")

	result := Result{Triggered: true}
	result.Kicked = m.kickRecent(actions, guildID, now)

	channels, err := actions.GuildChannels(guildID)
	if err != nil {
		m.logger.Warn("raid channel listing failed", zap.String("guild_id", guildID), zap.Error(err))
	} else {
		result.Locked = m.lock(actions, guildID, channels)
		announce(actions, channels, fmt.Sprintf("**RAID DETECTED** - kicked %d suspicious accounts and locked down the server.", result.Kicked))
	}

	m.audit.Log(ctx, audit.LevelCrit, guildID, "", "raid_response", fmt.Sprintf("kicked=%d locked=%d", result.Kicked, result.Locked))
	return result
}

// kickRecent removes every member whose join falls inside the detection window.
func (m *Module) kickRecent(actions Actions, guildID string, now time.Time) int {
	window := m.window()
	kicked := 0
	after := ""
	for {
		members, err := actions.GuildMembers(guildID, after, memberPageSize)
		if err != nil {
			m.logger.Warn("raid member listing failed", zap.String("guild_id", guildID), zap.Error(err))
			return kicked
		}
		for _, member := range members {
			if member == nil || member.User == nil || member.User.Bot {
				continue
			}
			if member.JoinedAt.IsZero() || now.Sub(member.JoinedAt) >= window {
				continue
			}
			if err := actions.GuildMemberDelete(guildID, member.User.ID); err != nil {
				m.logger.Warn("raid kick failed", zap.String("guild_id", guildID), zap.String("user_id", member.User.ID), zap.Error(err))
				continue
			}
			kicked++
		}
		if len(members) < memberPageSize || members[len(members)-1].User == nil {
			return kicked
		}
		after = members[len(members)-1].User.ID
	}
}

// lock denies SendMessages for @everyone on every text channel, remembering the previous overwrite.
func (m *Module) lock(actions Actions, guildID string, channels []*discordgo.Channel) int {
	snapshot := make(map[string]overwrite)
	m.mu.Lock()
	m.snapshots[guildID] = snapshot
	m.mu.Unlock()

	locked := 0
	for _, channel := range textChannels(channels) {
		prev := overwrite{}
		for _, po := range channel.PermissionOverwrites {
			if po.Type == discordgo.PermissionOverwriteTypeRole && po.ID == guildID {
				prev = overwrite{allow: po.Allow, deny: po.Deny, present: true}
				break
			}
		}
		allow := prev.allow &^ discordgo.PermissionSendMessages
		deny := prev.deny | discordgo.PermissionSendMessages
		if err := actions.ChannelPermissionSet(channel.ID, guildID, discordgo.PermissionOverwriteTypeRole, allow, deny); err != nil {
			m.logger.Warn("lockdown permission failed", zap.String("guild_id", guildID), zap.String("channel_id", channel.ID), zap.Error(err))
			continue
		}
		m.mu.Lock()
		snapshot[channel.ID] = prev
		m.mu.Unlock()
		locked++
	}
	return locked
}

func (m *Module) unlock(ctx context.Context, actions Actions, guildID string) {
	m.mu.Lock()
	snapshot := m.snapshots[guildID]
	delete(m.snapshots, guildID)
	m.mu.Unlock()

	restored := 0
	for channelID, prev := range snapshot {
		var err error
		if prev.present {
			err = actions.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole, prev.allow, prev.deny)
		} else {
			err = actions.ChannelPermissionDelete(channelID, guildID)
		}
		if err != nil {
			m.logger.Warn("lockdown restore failed", zap.String("guild_id", guildID), zap.String("channel_id", channelID), zap.Error(err))
			continue
		}
		restored++
	}
	m.joins.Reset(guildID)

	if channels, err := actions.GuildChannels(guildID); err == nil {
		announce(actions, channels, "Server lockdown lifted.")
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, "", "raid_unlock", fmt.Sprintf("restored=%d", restored))
}

// Sweep drops idle join windows.
func (m *Module) Sweep(now time.Time) int {
	return m.joins.Sweep(now)
}

func textChannels(channels []*discordgo.Channel) []*discordgo.Channel {
	out := make([]*discordgo.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		out = append(out, channel)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// announce posts content in the first text channel the bot can write to.
func announce(actions Actions, channels []*discordgo.Channel, content string) bool {
	for _, channel := range textChannels(channels) {
		if !actions.CanSend(channel.ID) {
			continue
		}
		if _, err := actions.ChannelMessageSend(channel.ID, content); err == nil {
			return true
		}
	}
	return false
}
