package filter

import (
	"context"
	"fmt"
	"time"

	"moodguard/internal/modules/audit"
	"moodguard/internal/telemetry"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Actions is the slice of the gateway the filter needs.
type Actions interface {
	ChannelMessageDelete(channelID, messageID string) error
	ChannelMessageSend(channelID, content string) (*discordgo.Message, error)
	GuildMemberTimeout(guildID, userID string, until *time.Time) error
}

type Module struct {
	chain  *Chain
	audit  *audit.Logger
	logger *zap.Logger
	now    func() time.Time
}

func New(chain *Chain, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{chain: chain, audit: auditLogger, logger: logger, now: time.Now}
}

// HandleMessage runs the chain and carries out the verdict. Gateway failures are logged
// and never returned; the verdict is.
func (m *Module) HandleMessage(ctx context.Context, actions Actions, msg *discordgo.Message) Verdict {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.Content == "" {
		return Verdict{Kind: Allow}
	}

	now := m.now()
	verdict := m.chain.Evaluate(msg.Content, msg.Author.ID, now)
	if verdict.Kind == Allow {
		return verdict
	}
	telemetry.CountVerdict(verdict.Kind.String())

	log := telemetry.Logger(ctx, m.logger).With(zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.Author.ID), zap.String("rule", verdict.Rule))
	if err := actions.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		log.Warn("filter delete failed", zap.Error(err))
	}

	mention := "<@" + msg.Author.ID + ">"
	var notice, detail string
	level := audit.LevelWarn
	switch verdict.Kind {
	case Delete:
		notice = fmt.Sprintf("%s server invites are not allowed here.", mention)
		detail = "rule=" + verdict.Rule
		level = audit.LevelInfo
	case DeleteAndWarn:
		notice = fmt.Sprintf("%s watch your language. Warning %d/%d.", mention, verdict.Warnings, verdict.Limit)
		detail = fmt.Sprintf("rule=%s warning=%d/%d", verdict.Rule, verdict.Warnings, verdict.Limit)
	case DeleteAndTimeout:
		minutes := int(verdict.Timeout / time.Minute)
		notice = fmt.Sprintf("%s you have been timed out for %d minutes due to repeated language violations.", mention, minutes)
		detail = fmt.Sprintf("rule=%s timeout_minutes=%d", verdict.Rule, minutes)
		if verdict.Capped {
			detail += " capped=true"
			log.Info("timeout capped", zap.Int("timeout_minutes", minutes))
		}
		level = audit.LevelCrit
		until := now.Add(verdict.Timeout)
		if msg.GuildID != "" {
			if err := actions.GuildMemberTimeout(msg.GuildID, msg.Author.ID, &until); err != nil {
				log.Warn("filter timeout failed", zap.Error(err))
			}
		}
	}

	if _, err := actions.ChannelMessageSend(msg.ChannelID, notice); err != nil {
		log.Warn("filter notice failed", zap.Error(err))
	}
	if m.audit != nil {
		m.audit.Log(ctx, level, msg.GuildID, msg.Author.ID, "filter_"+verdict.Kind.String(), detail)
	}
	return verdict
}
