// Package mood keeps the bot's mood and the short conversation history fed to the AI.
package mood

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
)

type Mood string

const (
	Neutral   Mood = "neutral"
	Happy     Mood = "happy"
	Angry     Mood = "angry"
	Sarcastic Mood = "sarcastic"
	Depressed Mood = "depressed"
)

var All = []Mood{Neutral, Happy, Angry, Sarcastic, Depressed}

var descriptions = map[Mood]string{
	Neutral:   "Respond naturally like a human. Don't mention being an AI.",
	Happy:     "Respond enthusiastically but keep it human-like. Show excitement.",
	Angry:     "Respond with irritation or frustration. Be blunt and short-tempered.",
	Sarcastic: "Respond with sarcasm and dry humor. Be witty.",
	Depressed: "Respond with melancholy and pessimism. Keep responses short.",
}

var fallbacks = map[Mood][]string{
	Neutral:   {"Hmm.", "Interesting.", "I see."},
	Happy:     {"Yeah!", "Awesome!", "That's great!"},
	Angry:     {"Ugh.", "Whatever.", "Not now."},
	Sarcastic: {"Oh great.", "How original.", "Wow, amazing."},
	Depressed: {"I guess...", "Does it matter?", "*sigh*"},
}

var acknowledgements = map[Mood]string{
	Neutral:   "Back to normal.",
	Happy:     "Yay! I'm happy now!",
	Angry:     "I'm pissed off now!",
	Sarcastic: "Oh great, sarcasm mode. How original.",
	Depressed: "*sigh* Fine, I'll be depressed...",
}

func Parse(raw string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := descriptions[m]
	return m, ok
}

// Acknowledge is the line the bot says after switching to m.
func Acknowledge(m Mood) string {
	if text, ok := acknowledgements[m]; ok {
		return text
	}
	return "Mood changed."
}

// NameResolver maps a user id to a display name.
type NameResolver interface {
	DisplayName(userID string) (string, bool)
}

type Turn struct {
	Role    string
	Content string
}

type ChannelLine struct {
	AuthorID string
	Content  string
}

type userHistory struct {
	turns       *ring[Turn]
	lastUpdated time.Time
}

type channelHistory struct {
	lines       *ring[ChannelLine]
	lastUpdated time.Time
}

type Provider struct {
	mu       sync.Mutex
	cfg      config.ContextConfig
	admin    string
	resolver NameResolver
	users    map[string]*userHistory
	channels map[string]*channelHistory
	mood     Mood
	feelings map[Mood]string
}

func NewProvider(cfg config.ContextConfig, adminID string, resolver NameResolver) *Provider {
	return &Provider{
		cfg:      cfg,
		admin:    adminID,
		resolver: resolver,
		users:    make(map[string]*userHistory),
		channels: make(map[string]*channelHistory),
		mood:     Neutral,
		feelings: make(map[Mood]string),
	}
}

// RecordExchange appends the user's message and the bot's reply to the user history and
// the user's message to the channel history.
func (p *Provider) RecordExchange(userID, channelID, userText, botText string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.users[userID]
	if user == nil {
		user = &userHistory{turns: newRing[Turn](p.cfg.UserHistory)}
		p.users[userID] = user
	}
	user.turns.push(Turn{Role: "user", Content: userText})
	user.turns.push(Turn{Role: "bot", Content: botText})
	user.lastUpdated = now

	if channelID == "" {
		return
	}
	channel := p.channels[channelID]
	if channel == nil {
		channel = &channelHistory{lines: newRing[ChannelLine](p.cfg.ChannelHistory)}
		p.channels[channelID] = channel
	}
	channel.lines.push(ChannelLine{AuthorID: userID, Content: userText})
	channel.lastUpdated = now
}

// BuildContext renders the most recent lines of user history followed by channel history.
func (p *Provider) BuildContext(userID, channelID string) string {
	p.mu.Lock()
	var turns []Turn
	var lines []ChannelLine
	if user := p.users[userID]; user != nil {
		turns = user.turns.slice()
	}
	if channel := p.channels[channelID]; channel != nil && channelID != "" {
		lines = channel.lines.slice()
	}
	p.mu.Unlock()

	rendered := make([]string, 0, len(turns)+len(lines))
	for _, turn := range turns {
		rendered = append(rendered, turn.Role+": "+turn.Content)
	}
	names := make(map[string]string)
	for _, line := range lines {
		name, ok := names[line.AuthorID]
		if !ok {
			name = p.displayName(line.AuthorID)
			names[line.AuthorID] = name
		}
		rendered = append(rendered, name+": "+line.Content)
	}
	if limit := p.cfg.RenderLines; limit > 0 && len(rendered) > limit {
		rendered = rendered[len(rendered)-limit:]
	}
	return strings.Join(rendered, "\n")
}

func (p *Provider) displayName(userID string) string {
	if p.resolver != nil {
		if name, ok := p.resolver.DisplayName(userID); ok && name != "" {
			return name
		}
	}
	return "User" + userID
}

// SetMood changes the process-wide mood. Only the configured admin may do this.
func (p *Provider) SetMood(actorID string, m Mood, feeling string) error {
	if p.admin == "" || actorID != p.admin {
		return apperr.New(apperr.Authorization, "mood.set", "only the mood keeper can change the mood")
	}
	if _, ok := descriptions[m]; !ok {
		return apperr.E(apperr.Validation, "mood.set", fmt.Errorf("unknown mood %q", m))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mood = m
	if feeling = strings.TrimSpace(feeling); feeling != "" {
		p.feelings[m] = feeling
	}
	return nil
}

func (p *Provider) Current() Mood {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mood
}

// Instruction is the mood part of the system prompt.
func (p *Provider) Instruction() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(descriptions[p.mood] + " " + p.feelings[p.mood])
}

func (p *Provider) Temperature() float64 {
	if p.Current() == Depressed {
		return 0.5
	}
	return 0.8
}

// Fallback picks a canned reply for the current mood.
func (p *Provider) Fallback(intn func(n int) int) string {
	options := fallbacks[p.Current()]
	return options[intn(len(options))]
}

// Sweep evicts histories idle for longer than the staleness threshold.
func (p *Provider) Sweep(now time.Time) int {
	stale := time.Duration(p.cfg.StaleDays) * 24 * time.Hour
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, user := range p.users {
		if now.Sub(user.lastUpdated) > stale {
			delete(p.users, id)
			removed++
		}
	}
	for id, channel := range p.channels {
		if now.Sub(channel.lastUpdated) > stale {
			delete(p.channels, id)
			removed++
		}
	}
	return removed
}
