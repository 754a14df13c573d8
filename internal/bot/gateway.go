package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// sessionGateway narrows a discordgo session to the calls the guard modules make.
type sessionGateway struct {
	session *discordgo.Session
}

func (g sessionGateway) GuildMembers(guildID, after string, limit int) ([]*discordgo.Member, error) {
	return g.session.GuildMembers(guildID, after, limit)
}

func (g sessionGateway) GuildMemberDelete(guildID, userID string) error {
	return g.session.GuildMemberDelete(guildID, userID)
}

func (g sessionGateway) GuildMemberTimeout(guildID, userID string, until *time.Time) error {
	return g.session.GuildMemberTimeout(guildID, userID, until)
}

func (g sessionGateway) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	if g.session.State != nil {
		if guild, err := g.session.State.Guild(guildID); err == nil && len(guild.Channels) > 0 {
			channels := make([]*discordgo.Channel, len(guild.Channels))
			copy(channels, guild.Channels)
			return channels, nil
		}
	}
	return g.session.GuildChannels(guildID)
}

func (g sessionGateway) ChannelDelete(channelID string) (*discordgo.Channel, error) {
	return g.session.ChannelDelete(channelID)
}

func (g sessionGateway) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	return g.session.ChannelPermissionSet(channelID, targetID, targetType, allow, deny)
}

func (g sessionGateway) ChannelPermissionDelete(channelID, targetID string) error {
	return g.session.ChannelPermissionDelete(channelID, targetID)
}

func (g sessionGateway) ChannelMessageSend(channelID, content string) (*discordgo.Message, error) {
	return g.session.ChannelMessageSend(channelID, content)
}

func (g sessionGateway) ChannelMessageDelete(channelID, messageID string) error {
	return g.session.ChannelMessageDelete(channelID, messageID)
}

// CanSend reports whether the bot may view and write in channelID according to cached state.
func (g sessionGateway) CanSend(channelID string) bool {
	if g.session.State == nil || g.session.State.User == nil {
		return false
	}
	perms, err := g.session.State.UserChannelPermissions(g.session.State.User.ID, channelID)
	if err != nil {
		return false
	}
	need := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	return perms&need == need
}
