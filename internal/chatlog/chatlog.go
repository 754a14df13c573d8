// Package chatlog persists a rolling log of chat activity as a single JSON document.
package chatlog

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
)

const maxUserMessages = 200

// Blobs is the storage the log is persisted to.
type Blobs interface {
	GetBlob(ctx context.Context, key string) ([]byte, bool, error)
	PutBlob(ctx context.Context, key string, value []byte) error
}

type Entry struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	GuildID   string `json:"guild_id,omitempty"`
}

type UserMessage struct {
	Content string `json:"content"`
	GuildID string `json:"guild_id,omitempty"`
}

type UserData struct {
	Messages    []UserMessage       `json:"messages"`
	GameUpdates map[string][]string `json:"game_updates"`
}

type document struct {
	GlobalChat  []Entry              `json:"global_chat"`
	UserData    map[string]*UserData `json:"user_data"`
	GamesByUser map[string][]string  `json:"games_by_user"`
}

func emptyDocument() document {
	return document{
		GlobalChat:  []Entry{},
		UserData:    make(map[string]*UserData),
		GamesByUser: make(map[string][]string),
	}
}

// Message is one observed chat message.
type Message struct {
	AuthorID   string
	AuthorName string
	GuildID    string
	Content    string
	At         time.Time
}

type Log struct {
	mu     sync.Mutex
	store  Blobs
	key    string
	limit  int
	keeper string
	doc    document
	logger *zap.Logger
}

// New returns an empty log. keeperID is the only user allowed to register games.
func New(store Blobs, cfg config.MemoryConfig, keeperID string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		store:  store,
		key:    cfg.Key,
		limit:  cfg.MaxGlobalEntries,
		keeper: keeperID,
		doc:    emptyDocument(),
		logger: logger,
	}
}

// Load reads the persisted document. A corrupt document is reported and replaced with an empty one.
func (l *Log) Load(ctx context.Context) error {
	raw, ok, err := l.store.GetBlob(ctx, l.key)
	if err != nil {
		return apperr.E(apperr.Internal, "chatlog.load", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !ok {
		l.doc = emptyDocument()
		return nil
	}
	doc := emptyDocument()
	if err := json.Unmarshal(raw, &doc); err != nil {
		l.doc = emptyDocument()
		return apperr.E(apperr.StateCorruption, "chatlog.load", err)
	}
	if doc.GlobalChat == nil {
		doc.GlobalChat = []Entry{}
	}
	if doc.UserData == nil {
		doc.UserData = make(map[string]*UserData)
	}
	if doc.GamesByUser == nil {
		doc.GamesByUser = make(map[string][]string)
	}
	l.doc = doc
	return nil
}

// Record appends msg to the global log and the author's history, then persists.
func (l *Log) Record(ctx context.Context, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.doc.GlobalChat = append(l.doc.GlobalChat, Entry{
		Author:    msg.AuthorName,
		Content:   msg.Content,
		Timestamp: msg.At.UTC().Format(time.RFC3339),
		GuildID:   msg.GuildID,
	})
	if l.limit > 0 && len(l.doc.GlobalChat) > l.limit {
		l.doc.GlobalChat = append([]Entry(nil), l.doc.GlobalChat[len(l.doc.GlobalChat)-l.limit:]...)
	}

	user := l.userLocked(msg.AuthorID)
	user.Messages = append(user.Messages, UserMessage{Content: msg.Content, GuildID: msg.GuildID})
	if len(user.Messages) > maxUserMessages {
		user.Messages = append([]UserMessage(nil), user.Messages[len(user.Messages)-maxUserMessages:]...)
	}
	if msg.AuthorID == l.keeper && isGameUpdate(msg.Content) {
		user.GameUpdates["general"] = append(user.GameUpdates["general"], msg.Content)
	}
	return l.saveLocked(ctx)
}

func isGameUpdate(content string) bool {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "roblox") && !strings.Contains(lower, "game") {
		return false
	}
	return strings.Contains(lower, "update") || strings.Contains(lower, "add")
}

// AddGame registers a game for the keeper.
func (l *Log) AddGame(ctx context.Context, actorID, name string) error {
	if l.keeper == "" || actorID != l.keeper {
		return apperr.New(apperr.Authorization, "chatlog.add_game", "only the game keeper can save games")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.New(apperr.Validation, "chatlog.add_game", "game name is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc.GamesByUser[actorID] = append(l.doc.GamesByUser[actorID], name)
	return l.saveLocked(ctx)
}

func (l *Log) Games(userID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.doc.GamesByUser[userID]...)
}

// ClearGuild forgets everything recorded in guildID. Callers check that the actor owns the guild.
func (l *Log) ClearGuild(ctx context.Context, guildID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	kept := l.doc.GlobalChat[:0]
	for _, entry := range l.doc.GlobalChat {
		if entry.GuildID == guildID {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	l.doc.GlobalChat = kept

	for _, user := range l.doc.UserData {
		msgs := user.Messages[:0]
		for _, m := range user.Messages {
			if m.GuildID == guildID {
				removed++
				continue
			}
			msgs = append(msgs, m)
		}
		user.Messages = msgs
		user.GameUpdates = make(map[string][]string)
	}
	return removed, l.saveLocked(ctx)
}

// Len reports the number of global entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.doc.GlobalChat)
}

func (l *Log) userLocked(userID string) *UserData {
	user := l.doc.UserData[userID]
	if user == nil {
		user = &UserData{GameUpdates: make(map[string][]string)}
		l.doc.UserData[userID] = user
	}
	if user.GameUpdates == nil {
		user.GameUpdates = make(map[string][]string)
	}
	return user
}

func (l *Log) saveLocked(ctx context.Context) error {
	raw, err := json.Marshal(l.doc)
	if err != nil {
		return apperr.E(apperr.Internal, "chatlog.save", err)
	}
	if err := l.store.PutBlob(ctx, l.key, raw); err != nil {
		l.logger.Warn("chat log save failed", zap.Error(err))
		return apperr.E(apperr.Internal, "chatlog.save", err)
	}
	return nil
}
