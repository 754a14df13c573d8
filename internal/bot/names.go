package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const nameTTL = 30 * time.Minute

// nameCache resolves user ids to display names from gateway state, remembering recent answers.
type nameCache struct {
	session *discordgo.Session
	cache   *expirable.LRU[string, string]
}

func newNameCache(session *discordgo.Session, size int, ttl time.Duration) *nameCache {
	if size <= 0 {
		size = 256
	}
	return &nameCache{session: session, cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

// remember stores the name seen on a live message.
func (n *nameCache) remember(user *discordgo.User, member *discordgo.Member) {
	if user == nil {
		return
	}
	if name := displayName(user, member); name != "" {
		n.cache.Add(user.ID, name)
	}
}

func (n *nameCache) DisplayName(userID string) (string, bool) {
	if name, ok := n.cache.Get(userID); ok {
		return name, true
	}
	if n.session == nil || n.session.State == nil {
		return "", false
	}
	for _, guild := range n.session.State.Guilds {
		if guild == nil {
			continue
		}
		member, err := n.session.State.Member(guild.ID, userID)
		if err != nil || member == nil {
			continue
		}
		name := displayName(member.User, member)
		if name == "" {
			continue
		}
		n.cache.Add(userID, name)
		return name, true
	}
	return "", false
}

func displayName(user *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	return user.Username
}
