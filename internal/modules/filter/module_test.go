package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"moodguard/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeActions struct {
	deleted  []string
	sent     []string
	timeouts map[string]time.Time
	failAll  bool
}

func (f *fakeActions) ChannelMessageDelete(_, messageID string) error {
	if f.failAll {
		return errors.New("missing permissions")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeActions) ChannelMessageSend(_, content string) (*discordgo.Message, error) {
	if f.failAll {
		return nil, errors.New("missing permissions")
	}
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeActions) GuildMemberTimeout(_, userID string, until *time.Time) error {
	if f.failAll {
		return errors.New("missing permissions")
	}
	if f.timeouts == nil {
		f.timeouts = make(map[string]time.Time)
	}
	f.timeouts[userID] = *until
	return nil
}

func newModule() *Module {
	m := New(newChain(), audit.NewLogger(nil, zap.NewNop()), zap.NewNop())
	m.now = func() time.Time { return time.Unix(1000, 0) }
	return m
}

func message(id, content string) *discordgo.Message {
	return &discordgo.Message{ID: id, ChannelID: "c1", GuildID: "g1", Author: &discordgo.User{ID: "u1"}, Content: content}
}

func TestHandleMessageTimeout(t *testing.T) {
	module := newModule()
	actions := &fakeActions{}
	for i := 0; i < 4; i++ {
		module.HandleMessage(context.Background(), actions, message("m", "cunt"))
	}
	if len(actions.deleted) != 4 {
		t.Fatalf("expected 4 deletions, got %d", len(actions.deleted))
	}
	until, ok := actions.timeouts["u1"]
	if !ok {
		t.Fatalf("expected timeout to be applied")
	}
	if until.Sub(time.Unix(1000, 0)) != 5*time.Minute {
		t.Fatalf("expected 5 minute timeout, got %s", until.Sub(time.Unix(1000, 0)))
	}
}

func TestHandleMessageIgnoresBots(t *testing.T) {
	module := newModule()
	actions := &fakeActions{}
	msg := message("m", "fuck")
	msg.Author.Bot = true
	if v := module.HandleMessage(context.Background(), actions, msg); v.Kind != Allow {
		t.Fatalf("bots should be ignored, got %s", v.Kind)
	}
}

func TestHandleMessageSurvivesGatewayFailures(t *testing.T) {
	module := newModule()
	actions := &fakeActions{failAll: true}
	v := module.HandleMessage(context.Background(), actions, message("m", "fuck"))
	if v.Kind != DeleteAndWarn {
		t.Fatalf("verdict should still be returned, got %s", v.Kind)
	}
}
