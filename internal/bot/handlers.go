package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
	"moodguard/internal/cooldown"
	"moodguard/internal/cover"
	"moodguard/internal/economy"
	"moodguard/internal/modules/audit"
	"moodguard/internal/modules/roblox"
	"moodguard/internal/mood"
	"moodguard/internal/telemetry"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorInfo  = 0x5865f2
	colorOK    = 0x2ecc71
	colorError = 0xe74c3c

	coverPrefix       = "cover"
	coverStatusPrefix = "cover-status"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := telemetry.WithCorrelation(b.ctx, "")
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction)
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	opts := optionMap(data.Options)
	actor := actorID(interaction)
	log := telemetry.Logger(ctx, b.logger).With(zap.String("command", data.Name), zap.String("user_id", actor))

	switch data.Name {
	case "cover":
		b.handleCover(ctx, session, interaction, actor, stringOption(opts, "url"))
	case "balance":
		target := userOption(session, opts, "user", actor)
		balance, err := b.economy.Balance(ctx, target)
		if err != nil {
			b.respondError(ctx, session, interaction, err)
			return
		}
		b.respondEmbed(session, interaction, commandEmbed("Balance", fmt.Sprintf("<@%s> has **%d** coins.", target, balance), colorInfo, nil), false)
	case "daily":
		claim, err := b.economy.Daily(ctx, actor)
		if err != nil {
			b.respondError(ctx, session, interaction, err)
			return
		}
		if !claim.Allowed {
			b.respond(session, interaction, "You already claimed today. Come back in "+formatWait(claim.Remaining)+".", true)
			return
		}
		b.respondEmbed(session, interaction, commandEmbed("Daily reward", fmt.Sprintf("You received **%d** coins. Balance: **%d**.", claim.Amount, claim.Balance), colorOK, nil), false)
	case "work":
		claim, err := b.economy.Work(ctx, actor)
		if err != nil {
			b.respondError(ctx, session, interaction, err)
			return
		}
		if !claim.Allowed {
			b.respond(session, interaction, "You're tired. Rest for "+formatWait(claim.Remaining)+".", true)
			return
		}
		b.respondEmbed(session, interaction, commandEmbed("Work", fmt.Sprintf("You worked as a **%s** and earned **%d** coins. Balance: **%d**.", claim.Job, claim.Amount, claim.Balance), colorOK, nil), false)
	case "level":
		target := userOption(session, opts, "user", actor)
		progress, err := b.economy.Level(ctx, target)
		if err != nil {
			b.respondError(ctx, session, interaction, err)
			return
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Level", Value: fmt.Sprintf("%d", progress.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d", progress.XP), Inline: true},
			{Name: "Progress", Value: fmt.Sprintf("%d/100", progress.Progress), Inline: true},
		}
		b.respondEmbed(session, interaction, commandEmbed("Level", "<@"+target+">", colorInfo, fields), false)
	case "setmood":
		b.handleSetMood(session, interaction, actor, stringOption(opts, "mood"), stringOption(opts, "feeling"))
	case "lockdown", "antinuke":
		b.handleToggle(ctx, session, interaction, data.Name, actor, opts)
	case "cleanchannels":
		b.handleCleanChannels(ctx, session, interaction, actor)
	case "status":
		b.handleStatus(ctx, session, interaction, actor)
	case "game":
		if err := b.chatlog.AddGame(ctx, actor, stringOption(opts, "name")); err != nil {
			b.respondError(ctx, session, interaction, err)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Game '%s' has been saved to memory.", strings.TrimSpace(stringOption(opts, "name"))), false)
	case "clearmemory":
		b.handleClearMemory(ctx, session, interaction, actor)
	case "upload", "publish", "datastore":
		b.handleRoblox(ctx, session, interaction, data, actor, opts)
	case "help":
		b.handleHelp(ctx, session, interaction, actor)
	default:
		log.Debug("unknown command")
	}
}

func (b *Bot) handleCover(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor, rawURL string) {
	ticket, err := b.covers.Request(ctx, actor, interaction.ChannelID, rawURL)
	if err != nil {
		b.respondError(ctx, session, interaction, err)
		return
	}
	content := fmt.Sprintf("Charged **%d** coins (balance **%d**). Pick a voice within %d minutes.", ticket.Charged, ticket.Balance, b.cfg.Cover.SelectionTimeoutMinutes)
	b.respondComponents(session, interaction, content, modelButtons(ticket.ID, b.covers.Models()), false)
}

func (b *Bot) handleSetMood(session *discordgo.Session, interaction *discordgo.InteractionCreate, actor, rawMood, feeling string) {
	if !b.isMoodAdmin(actor) {
		b.respond(session, interaction, "Only the mood keeper can change my mood.", true)
		return
	}
	if strings.TrimSpace(rawMood) == "" {
		names := make([]string, 0, len(mood.All))
		for _, m := range mood.All {
			names = append(names, string(m))
		}
		b.respond(session, interaction, fmt.Sprintf("Current mood: %s\nAvailable moods: %s", b.mood.Current(), strings.Join(names, ", ")), true)
		return
	}
	m, ok := mood.Parse(rawMood)
	if !ok {
		b.respond(session, interaction, "Invalid mood.", true)
		return
	}
	if err := b.mood.SetMood(actor, m, feeling); err != nil {
		b.respondError(b.ctx, session, interaction, err)
		return
	}
	b.respond(session, interaction, mood.Acknowledge(m), false)
}

func (b *Bot) handleToggle(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, name, actor string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command can only be used in a server.", true)
		return
	}
	if !b.canAdminister(session, interaction.GuildID, actor) {
		b.respond(session, interaction, "Only the server owner can use this command.", true)
		return
	}
	var state *bool
	if opt, ok := opts["enabled"]; ok {
		value := opt.BoolValue()
		state = &value
	}

	var (
		enabled bool
		err     error
		label   string
	)
	if name == "lockdown" {
		enabled, err = b.antiraid.SetEnabled(ctx, interaction.GuildID, state)
		label = "Raid protection"
	} else {
		enabled, err = b.antinuke.SetEnabled(ctx, interaction.GuildID, state)
		label = "Anti-nuke"
	}
	if err != nil {
		b.respondError(ctx, session, interaction, err)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, actor, name+"_toggle", fmt.Sprintf("enabled=%t", enabled))
	b.respond(session, interaction, fmt.Sprintf("%s: %s", label, enabledLabel(enabled)), false)
}

func (b *Bot) handleCleanChannels(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor string) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command can only be used in a server.", true)
		return
	}
	if !b.canAdminister(session, interaction.GuildID, actor) {
		b.respond(session, interaction, "Only the server owner can use this command.", true)
		return
	}
	if !b.deferResponse(session, interaction, false) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		deleted, err := b.antinuke.CleanDuplicates(ctx, b.gateway, interaction.GuildID)
		if err != nil {
			b.editResponse(session, interaction, userMessage(err), nil)
			return
		}
		b.editResponse(session, interaction, fmt.Sprintf("Deleted %d duplicate channels.", deleted), nil)
	}()
}

func (b *Bot) handleStatus(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor string) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command can only be used in a server.", true)
		return
	}
	if !b.canAdminister(session, interaction.GuildID, actor) {
		b.respond(session, interaction, "Only the server owner can use this command.", true)
		return
	}
	lockdown := b.playbook.IsLockdown(interaction.GuildID)
	lockValue := "off"
	if lockdown.Lockdown {
		lockValue = "until <t:" + fmt.Sprintf("%d", lockdown.Until.Unix()) + ":t>"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Raid protection", Value: enabledLabel(b.antiraid.Enabled(ctx, interaction.GuildID)), Inline: true},
		{Name: "Anti-nuke", Value: enabledLabel(b.antinuke.Enabled(ctx, interaction.GuildID)), Inline: true},
		{Name: "Lockdown", Value: lockValue, Inline: true},
		{Name: "Mood", Value: string(b.mood.Current()), Inline: true},
		{Name: "Cover jobs", Value: fmt.Sprintf("%d", b.covers.Registry().Len()), Inline: true},
		{Name: "Uptime", Value: formatWait(time.Since(b.startedAt)), Inline: true},
	}
	if b.analytics != nil {
		report, err := b.analytics.Report(ctx, interaction.GuildID, time.Now().Add(-24*time.Hour))
		if err != nil {
			telemetry.Logger(ctx, b.logger).Warn("status report failed", zap.Error(err))
		} else {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Last 24h", Value: formatReport(report), Inline: false})
		}
	}
	b.respondEmbed(session, interaction, commandEmbed("Security status", "", colorInfo, fields), true)
}

func (b *Bot) handleClearMemory(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor string) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command can only be used in a server.", true)
		return
	}
	if owner := b.guildOwner(session, interaction.GuildID); owner == "" || owner != actor {
		b.respond(session, interaction, "Only the server owner can clear memory.", true)
		return
	}
	removed, err := b.chatlog.ClearGuild(ctx, interaction.GuildID)
	if err != nil {
		b.respondError(ctx, session, interaction, err)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, actor, "memory_cleared", fmt.Sprintf("removed=%d", removed))
	b.respond(session, interaction, "Memory for this server has been cleared.", false)
}

func (b *Bot) handleRoblox(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, actor string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !b.roblox.Authorized(actor) {
		b.respondError(ctx, session, interaction, roblox.ErrNotAuthorized)
		return
	}
	var fileURL, fileName string
	if file := attachmentOption(data, opts, "file"); file != nil {
		fileURL, fileName = file.URL, file.Filename
	}
	var value *string
	if opt, ok := opts["value"]; ok {
		v := opt.StringValue()
		value = &v
	}
	if !b.deferResponse(session, interaction, false) {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		var (
			content string
			err     error
		)
		switch data.Name {
		case "upload":
			var assetID string
			assetID, err = b.roblox.Upload(ctx, actor, interaction.GuildID, fileURL, fileName)
			content = "Uploaded! Asset ID: " + assetID
		case "publish":
			var placeID string
			placeID, err = b.roblox.Publish(ctx, actor, interaction.GuildID, fileURL, stringOption(opts, "place_id"))
			content = "Published to place " + placeID + "!"
		case "datastore":
			content, err = b.roblox.Datastore(ctx, actor, interaction.GuildID, stringOption(opts, "action"), stringOption(opts, "name"), stringOption(opts, "key"), value)
		}
		if err != nil {
			telemetry.Logger(ctx, b.logger).Info("roblox command failed", zap.String("command", data.Name), zap.String("user_id", actor), zap.Error(err))
			content = userMessage(err)
		}
		b.editResponse(session, interaction, content, nil)
	}()
}

func (b *Bot) handleHelp(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor string) {
	res, err := b.ledger.Reserve(ctx, actor, cooldown.ActionHelp, time.Duration(b.cfg.Cooldowns.HelpSeconds)*time.Second, time.Now())
	if err == nil && !res.Allowed {
		b.respond(session, interaction, "Slow down. Try again in "+formatWait(res.Remaining)+".", true)
		return
	}
	admin := interaction.GuildID != "" && b.canAdminister(session, interaction.GuildID, actor)
	b.respondEmbed(session, interaction, helpEmbed(admin, b.isMoodAdmin(actor), b.roblox.Authorized(actor)), true)
}

func helpEmbed(admin, moodAdmin, robloxUser bool) *discordgo.MessageEmbed {
	var fields []*discordgo.MessageEmbedField
	if admin {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Admin", Value: "`/lockdown`, `/antinuke`, `/cleanchannels`, `/status`, `/clearmemory`"})
	}
	if moodAdmin {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Mood keeper", Value: "`/setmood`, `/game`"})
	}
	if robloxUser {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Roblox", Value: "`/upload`, `/publish`, `/datastore`"})
	}
	fields = append(fields,
		&discordgo.MessageEmbedField{Name: "AI covers", Value: "`/cover` - make an AI cover from a YouTube link"},
		&discordgo.MessageEmbedField{Name: "Economy", Value: "`/balance`, `/daily`, `/work`, `/level`"},
		&discordgo.MessageEmbedField{Name: "Utility", Value: "`/help`"},
	)
	return commandEmbed("Bot commands", "Mention me or reply to me for a conversation.", colorInfo, fields)
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	actor := actorID(interaction)
	kind, first, second, ok := parseCustomID(data.CustomID)
	if !ok {
		return
	}

	switch kind {
	case coverPrefix:
		if !b.deferResponse(session, interaction, true) {
			return
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			job, err := b.covers.Start(ctx, first, actor, second)
			if err != nil {
				telemetry.Logger(ctx, b.logger).Info("cover start rejected", zap.String("user_id", actor), zap.Error(err))
				b.editResponse(session, interaction, userMessage(err), nil)
				return
			}
			content := fmt.Sprintf("Your %s cover is processing. I'll ping you here when it's done.", b.modelName(job.Model))
			b.editResponse(session, interaction, content, []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Check status", Style: discordgo.SecondaryButton, CustomID: coverStatusPrefix + ":" + job.ID},
				}},
			})
		}()
	case coverStatusPrefix:
		job, known := b.covers.Registry().Get(first)
		if known && job.Requester != actor {
			b.respond(session, interaction, "This isn't your cover!", true)
			return
		}
		switch b.covers.Status(ctx, first) {
		case cover.StatusCompleted:
			if url, ok := b.covers.DownloadURL(ctx, first); ok {
				b.respond(session, interaction, "Download your AI cover here:\n"+url, true)
				return
			}
			b.respond(session, interaction, "Cover completed but the download failed.", true)
		case cover.StatusFailed:
			b.respond(session, interaction, "Cover generation failed. Please try again.", true)
		case cover.StatusTimedOut:
			b.respond(session, interaction, "Cover generation timed out.", true)
		default:
			b.respond(session, interaction, "Still processing... Please wait.", true)
		}
	}
}

// modelButtons lays out one button per voice model, five per row.
func modelButtons(ticketID string, models []config.VoiceModel) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, m := range models {
		if len(rows) == 5 {
			break
		}
		row = append(row, discordgo.Button{
			Label:    m.Name,
			Style:    discordgo.PrimaryButton,
			CustomID: coverPrefix + ":" + ticketID + ":" + m.ID,
		})
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 && len(rows) < 5 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

// parseCustomID splits "kind:a[:b]".
func parseCustomID(id string) (kind, first, second string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return "", "", "", false
	}
	switch parts[0] {
	case coverPrefix:
		if len(parts) != 3 || parts[2] == "" {
			return "", "", "", false
		}
		return parts[0], parts[1], parts[2], true
	case coverStatusPrefix:
		return parts[0], strings.Join(parts[1:], ":"), "", true
	}
	return "", "", "", false
}

func (b *Bot) isMoodAdmin(actor string) bool {
	return b.cfg.MoodAdminID != "" && actor == b.cfg.MoodAdminID
}

func (b *Bot) canAdminister(session *discordgo.Session, guildID, actor string) bool {
	return isPrivileged(b.cfg.OwnerIDs, b.guildOwner(session, guildID), actor)
}

// isPrivileged grants configured owners and the owner of the guild.
func isPrivileged(ownerIDs []string, guildOwnerID, actor string) bool {
	if actor == "" {
		return false
	}
	if slices.Contains(ownerIDs, actor) {
		return true
	}
	return guildOwnerID != "" && guildOwnerID == actor
}

func (b *Bot) guildOwner(session *discordgo.Session, guildID string) string {
	if guildID == "" {
		return ""
	}
	if session.State != nil {
		if guild, err := session.State.Guild(guildID); err == nil && guild.OwnerID != "" {
			return guild.OwnerID
		}
	}
	guild, err := session.Guild(guildID)
	if err != nil {
		return ""
	}
	return guild.OwnerID
}

func actorID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

// attachmentOption resolves an attachment option to the uploaded file.
func attachmentOption(data discordgo.ApplicationCommandInteractionData, opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.MessageAttachment {
	opt, ok := opts[name]
	if !ok || data.Resolved == nil {
		return nil
	}
	id, _ := opt.Value.(string)
	return data.Resolved.Attachments[id]
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return out
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func userOption(session *discordgo.Session, opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name, fallback string) string {
	if opt, ok := opts[name]; ok {
		if user := opt.UserValue(session); user != nil && user.ID != "" {
			return user.ID
		}
	}
	return fallback
}

// userMessage turns a classified error into something safe to show the requester.
func userMessage(err error) string {
	if cd, ok := cover.IsCooldown(err); ok {
		return "Slow down! Try again in " + formatWait(cd.Remaining) + "."
	}
	if errors.Is(err, economy.ErrInsufficientFunds) {
		return "You don't have enough coins for that."
	}
	if apperr.UserVisible(err) {
		var classified *apperr.Error
		if errors.As(err, &classified) && classified.Err != nil && classified.Err.Error() != "" {
			msg := classified.Err.Error()
			return strings.ToUpper(msg[:1]) + msg[1:] + "."
		}
	}
	if apperr.Is(err, apperr.ExternalService) {
		return "An outside service didn't cooperate. Please try again later."
	}
	return "Something went wrong. Please try again later."
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func (b *Bot) respondError(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	if !apperr.UserVisible(err) {
		telemetry.Logger(ctx, b.logger).Warn("command failed", zap.String("kind", apperr.KindOf(err).String()), zap.Error(err))
	}
	b.respond(session, interaction, userMessage(err), true)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	b.respondData(session, interaction, &discordgo.InteractionResponseData{Content: content}, ephemeral)
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	b.respondData(session, interaction, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}, ephemeral)
}

func (b *Bot) respondComponents(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent, ephemeral bool) {
	b.respondData(session, interaction, &discordgo.InteractionResponseData{Content: content, Components: components}, ephemeral)
}

func (b *Bot) respondData(session *discordgo.Session, interaction *discordgo.InteractionCreate, data *discordgo.InteractionResponseData, ephemeral bool) {
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Debug("interaction respond failed", zap.Error(err))
	}
}

// deferResponse acknowledges a slow interaction; the answer follows through editResponse.
func (b *Bot) deferResponse(session *discordgo.Session, interaction *discordgo.InteractionCreate, ephemeral bool) bool {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Warn("interaction defer failed", zap.Error(err))
		return false
	}
	return true
}

func (b *Bot) editResponse(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	edit := &discordgo.WebhookEdit{Content: &content}
	if components != nil {
		edit.Components = &components
	}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, edit); err != nil {
		b.logger.Debug("interaction edit failed", zap.Error(err))
	}
}

func commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
