package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"moodguard/internal/ai"
	"moodguard/internal/analytics"
	"moodguard/internal/chatlog"
	"moodguard/internal/config"
	"moodguard/internal/cooldown"
	"moodguard/internal/cover"
	"moodguard/internal/economy"
	"moodguard/internal/infraction"
	"moodguard/internal/modules/antinuke"
	"moodguard/internal/modules/antiraid"
	"moodguard/internal/modules/audit"
	"moodguard/internal/modules/filter"
	"moodguard/internal/modules/roblox"
	"moodguard/internal/mood"
	"moodguard/internal/playbook"
	"moodguard/internal/storage"
	"moodguard/internal/telemetry"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maintenanceInterval = 10 * time.Minute

// Deps are the components built by the process before the bot connects.
type Deps struct {
	Store     *storage.Store
	Ledger    cooldown.Ledger
	Audit     *audit.Logger
	Playbook  *playbook.Engine
	Analytics *analytics.Service
	Economy   *economy.Engine
	ChatLog   *chatlog.Log
	Generator ai.Generator
	Extractor cover.Extractor
	Converter cover.Converter
	Roblox    roblox.API
}

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	gateway   sessionGateway
	store     *storage.Store
	ledger    cooldown.Ledger
	audit     *audit.Logger
	playbook  *playbook.Engine
	analytics *analytics.Service
	economy   *economy.Engine
	chatlog   *chatlog.Log

	infractions *infraction.Engine
	filter      *filter.Module
	antiraid    *antiraid.Module
	antinuke    *antinuke.Module
	mood        *mood.Provider
	responder   *ai.Responder
	covers      *cover.Pipeline
	roblox      *roblox.Module
	names       *nameCache

	startedAt   time.Time
	lastCleanup time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger, deps Deps) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		session:     session,
		gateway:     sessionGateway{session: session},
		store:       deps.Store,
		ledger:      deps.Ledger,
		audit:       deps.Audit,
		playbook:    deps.Playbook,
		analytics:   deps.Analytics,
		economy:     deps.Economy,
		chatlog:     deps.ChatLog,
		infractions: infraction.NewEngine(cfg.Filter),
		names:       newNameCache(session, 2048, nameTTL),
		ctx:         ctx,
		cancel:      cancel,
	}

	defaults := storage.GuildSettings{
		SecurityLogChannel: cfg.DefaultSecurityLogChannel,
		RaidEnabled:        cfg.Security.RaidEnabled,
		NukeEnabled:        cfg.Security.NukeEnabled,
	}
	chain := filter.NewChain(filter.DefaultRules(cfg.Filter.BannedTerms, cfg.Filter.BlockInvites), b.infractions)
	b.filter = filter.New(chain, deps.Audit, logger)
	b.antiraid = antiraid.New(cfg.Security, defaults, deps.Store, deps.Playbook, deps.Audit, logger)
	b.antinuke = antinuke.New(cfg.Security, defaults, deps.Store, deps.Audit, logger)
	b.mood = mood.NewProvider(cfg.Context, cfg.MoodAdminID, b.names)
	b.responder = ai.NewResponder(deps.Generator, b.mood, cfg.AI.MaxOutputTokens, logger)
	b.roblox = roblox.New(cfg.Roblox, deps.Roblox, deps.Audit, logger)
	b.covers = cover.NewPipeline(cfg.Cover, cfg.Cooldowns, deps.Economy, deps.Ledger, deps.Extractor, deps.Converter, b, logger)

	if b.audit != nil {
		b.audit.SetNotifier(b.notifyAudit)
	}
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onChannelCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	b.startedAt = time.Now()

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.covers.Run(b.ctx)
	}()
	go func() {
		defer b.wg.Done()
		b.maintain()
	}()
	return nil
}

// Close stops background work, restores any locked-down guilds and disconnects.
func (b *Bot) Close(ctx context.Context) {
	b.cancel()
	b.covers.Close()
	b.playbook.Close(ctx)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("shutdown timed out waiting for handlers")
	}

	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
	if err := session.UpdateListeningStatus("/help"); err != nil {
		b.logger.Debug("presence update failed", zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	ctx := telemetry.WithCorrelation(b.ctx, "")
	log := telemetry.Logger(ctx, b.logger)
	b.names.remember(msg.Author, msg.Member)

	if msg.GuildID != "" {
		if verdict := b.filter.HandleMessage(ctx, b.gateway, msg.Message); verdict.Kind != filter.Allow {
			return
		}
	}

	if _, err := b.economy.AwardMessage(ctx, msg.Author.ID); err != nil {
		log.Warn("xp award failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}
	if b.chatlog != nil && msg.Content != "" {
		entry := chatlog.Message{
			AuthorID:   msg.Author.ID,
			AuthorName: msg.Author.Username,
			GuildID:    msg.GuildID,
			Content:    msg.Content,
			At:         msg.Timestamp,
		}
		if err := b.chatlog.Record(ctx, entry); err != nil {
			log.Warn("chat log record failed", zap.Error(err))
		}
	}

	if roblox.IsGameQuestion(msg.Content) {
		if _, err := b.session.ChannelMessageSend(msg.ChannelID, roblox.GameAdvice); err != nil {
			log.Debug("game advice send failed", zap.Error(err))
		}
	}

	botID := ""
	if session.State != nil && session.State.User != nil {
		botID = session.State.User.ID
	}
	text, ok := addressedTo(botID, msg.Message)
	if !ok {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.reply(ctx, msg.Message, text)
	}()
}

func (b *Bot) reply(ctx context.Context, msg *discordgo.Message, text string) {
	_ = b.session.ChannelTyping(msg.ChannelID)
	answer := b.responder.Reply(ctx, msg.Author.ID, msg.ChannelID, text)
	if _, err := b.session.ChannelMessageSendReply(msg.ChannelID, answer, msg.Reference()); err != nil {
		telemetry.Logger(ctx, b.logger).Warn("ai reply send failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// addressedTo returns the text meant for botID when msg mentions or replies to it.
func addressedTo(botID string, msg *discordgo.Message) (string, bool) {
	if botID == "" || msg == nil {
		return "", false
	}
	mentioned := false
	for _, user := range msg.Mentions {
		if user != nil && user.ID == botID {
			mentioned = true
			break
		}
	}
	replied := msg.ReferencedMessage != nil && msg.ReferencedMessage.Author != nil && msg.ReferencedMessage.Author.ID == botID
	if !mentioned && !replied {
		return "", false
	}

	text := msg.Content
	if mentioned {
		text = strings.ReplaceAll(text, "<@"+botID+">", "")
		text = strings.ReplaceAll(text, "<@!"+botID+">", "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if !mentioned {
			return "", false
		}
		text = "Hello"
	}
	return text, true
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.Member.User == nil || event.Member.User.Bot {
		return
	}
	ctx := telemetry.WithCorrelation(b.ctx, "")
	result := b.antiraid.HandleJoin(ctx, b.gateway, event.GuildID, event.Member)
	if result.Triggered {
		telemetry.Logger(ctx, b.logger).Warn("raid response", zap.String("guild_id", event.GuildID), zap.Int("kicked", result.Kicked), zap.Int("locked", result.Locked))
	}
}

func (b *Bot) onChannelCreate(session *discordgo.Session, event *discordgo.ChannelCreate) {
	if event.Channel == nil || event.GuildID == "" {
		return
	}
	ctx := telemetry.WithCorrelation(b.ctx, "")
	if triggered, deleted := b.antinuke.HandleChannelCreate(ctx, b.gateway, event.GuildID); triggered {
		telemetry.Logger(ctx, b.logger).Warn("nuke response", zap.String("guild_id", event.GuildID), zap.Int("deleted", deleted))
	}
}

// CoverFinished delivers the outcome of a conversion job to the channel it was requested in.
func (b *Bot) CoverFinished(ctx context.Context, job cover.Job) {
	log := telemetry.Logger(ctx, b.logger).With(zap.String("job", job.ID), zap.String("user_id", job.Requester))
	mention := "<@" + job.Requester + ">"

	var send *discordgo.MessageSend
	switch job.Status {
	case cover.StatusCompleted:
		url, ok := b.covers.DownloadURL(ctx, job.ID)
		if !ok {
			send = &discordgo.MessageSend{Content: mention + " your cover finished but the download link could not be fetched."}
			break
		}
		send = &discordgo.MessageSend{
			Content: mention,
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "AI cover complete",
				Description: fmt.Sprintf("Your %s cover is ready.", b.modelName(job.Model)),
				Color:       0x2ecc71,
				Timestamp:   time.Now().Format(time.RFC3339),
			}},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Download cover", Style: discordgo.LinkButton, URL: url},
				}},
			},
		}
	case cover.StatusFailed:
		send = &discordgo.MessageSend{Content: mention + " your cover generation failed. Please try again."}
	case cover.StatusTimedOut:
		send = &discordgo.MessageSend{Content: mention + " your cover is taking too long and is no longer being tracked."}
	default:
		return
	}
	if _, err := b.session.ChannelMessageSendComplex(job.ChannelID, send); err != nil {
		log.Warn("cover notification failed", zap.Error(err))
	}
}

func (b *Bot) modelName(id string) string {
	for _, m := range b.cfg.Cover.Models {
		if m.ID == id {
			return m.Name
		}
	}
	return id
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if entry.Level != audit.LevelCrit || entry.GuildID == "" {
		return
	}
	channelID := b.cfg.DefaultSecurityLogChannel
	if b.store != nil {
		settings, err := b.store.GetGuildSettings(ctx, entry.GuildID, storage.GuildSettings{GuildID: entry.GuildID})
		if err == nil && settings.SecurityLogChannel != "" {
			channelID = settings.SecurityLogChannel
		}
	}
	if channelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Security event",
		Description: entry.Event,
		Color:       0xe74c3c,
		Timestamp:   entry.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Details", Value: nonEmpty(entry.Details, "-"), Inline: false},
		},
	}
	if entry.UserID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Debug("security log send failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// maintain sweeps in-memory state until the bot closes.
func (b *Bot) maintain() {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case now := <-ticker.C:
			b.sweep(now)
		}
	}
}

type sweeper interface {
	Sweep(now time.Time) int
}

func (b *Bot) sweep(now time.Time) {
	removed := b.infractions.Sweep(now) +
		b.antiraid.Sweep(now) +
		b.antinuke.Sweep(now) +
		b.mood.Sweep(now)
	if s, ok := b.ledger.(sweeper); ok {
		removed += s.Sweep(now)
	}
	if removed > 0 {
		b.logger.Debug("maintenance sweep", zap.Int("removed", removed))
	}

	if b.store == nil || b.cfg.RetentionDays <= 0 || now.Sub(b.lastCleanup) < 24*time.Hour {
		return
	}
	b.lastCleanup = now
	deleted, err := b.store.CleanupAuditLogs(b.ctx, b.cfg.RetentionDays)
	if err != nil {
		b.logger.Warn("audit cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		b.logger.Info("audit logs pruned", zap.Int64("deleted", deleted))
	}
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func formatReport(report analytics.Report) string {
	line := fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d", report.Total, report.ByLevel[audit.LevelInfo], report.ByLevel[audit.LevelWarn], report.ByLevel[audit.LevelCrit])
	for i, event := range report.Events {
		if i == 3 {
			break
		}
		line += fmt.Sprintf("\n%s: %d", event.Event, event.Count)
	}
	return line
}
