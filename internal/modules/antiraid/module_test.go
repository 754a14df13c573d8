package antiraid

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"moodguard/internal/config"
	"moodguard/internal/modules/audit"
	"moodguard/internal/playbook"
	"moodguard/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeGuild struct {
	mu          sync.Mutex
	members     []*discordgo.Member
	channels    []*discordgo.Channel
	kicked      []string
	permSets    map[string][2]int64
	permDeletes []string
	sent        []string
	failKick    map[string]bool
	mutedFor    map[string]bool
}

func (f *fakeGuild) GuildMembers(_, after string, limit int) ([]*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := 0
	if after != "" {
		for i, m := range f.members {
			if m.User.ID == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.members) {
		end = len(f.members)
	}
	return f.members[start:end], nil
}

func (f *fakeGuild) GuildMemberDelete(_, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKick[userID] {
		return errors.New("missing permissions")
	}
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeGuild) GuildChannels(string) ([]*discordgo.Channel, error) {
	return f.channels, nil
}

func (f *fakeGuild) ChannelPermissionSet(channelID, _ string, _ discordgo.PermissionOverwriteType, allow, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permSets == nil {
		f.permSets = make(map[string][2]int64)
	}
	f.permSets[channelID] = [2]int64{allow, deny}
	return nil
}

func (f *fakeGuild) ChannelPermissionDelete(channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permDeletes = append(f.permDeletes, channelID)
	return nil
}

func (f *fakeGuild) ChannelMessageSend(channelID, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID+":"+content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeGuild) CanSend(channelID string) bool { return !f.mutedFor[channelID] }

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(_ time.Duration, fn func()) playbook.Timer {
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) fire() {
	for _, t := range c.timers {
		if !t.stopped {
			t.fn()
		}
	}
	c.timers = nil
}

type harness struct {
	module *Module
	guild  *fakeGuild
	clock  *fakeClock
	pb     *playbook.Engine
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	auditLogger := audit.NewLogger(store, zap.NewNop())
	pb := playbook.New(playbook.Config{LockdownMinutes: 60}, auditLogger)
	clock := &fakeClock{now: time.Unix(10_000, 0)}
	pb.WithClock(clock)

	cfg := config.DefaultConfig().Security
	module := New(cfg, storage.GuildSettings{RaidEnabled: true, NukeEnabled: true}, store, pb, auditLogger, zap.NewNop())
	h := &harness{module: module, clock: clock, pb: pb, now: clock.now}
	module.now = func() time.Time { return h.now }

	h.guild = &fakeGuild{
		channels: []*discordgo.Channel{
			{ID: "c2", Type: discordgo.ChannelTypeGuildText, Position: 2},
			{ID: "c1", Type: discordgo.ChannelTypeGuildText, Position: 1, PermissionOverwrites: []*discordgo.PermissionOverwrite{
				{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionAttachFiles},
			}},
			{ID: "v1", Type: discordgo.ChannelTypeGuildVoice, Position: 0},
		},
		mutedFor: map[string]bool{"c1": true},
	}
	return h
}

func (h *harness) join(id string) Result {
	member := &discordgo.Member{GuildID: "g1", JoinedAt: h.now, User: &discordgo.User{ID: id}}
	h.guild.mu.Lock()
	h.guild.members = append(h.guild.members, member)
	h.guild.mu.Unlock()
	return h.module.HandleJoin(context.Background(), h.guild, "g1", member)
}

func TestRaidTriggersOnceAndKicksDuringLockdown(t *testing.T) {
	h := newHarness(t)
	h.guild.members = append(h.guild.members, &discordgo.Member{JoinedAt: h.now.Add(-time.Hour), User: &discordgo.User{ID: "old"}})

	triggered := 0
	for i := 0; i < 6; i++ {
		h.now = h.now.Add(3 * time.Second)
		if h.join("u" + strconv.Itoa(i)).Triggered {
			triggered++
		}
	}
	if triggered != 1 {
		t.Fatalf("expected exactly one raid response, got %d", triggered)
	}
	if !h.pb.IsLockdown("g1").Lockdown {
		t.Fatalf("expected lockdown")
	}
	for _, id := range h.guild.kicked {
		if id == "old" {
			t.Fatalf("members outside the window must not be kicked")
		}
	}
	kickedBefore := len(h.guild.kicked)
	countBefore := h.module.joins.Count("g1", h.now)

	res := h.join("late")
	if res.Triggered || res.Kicked != 1 {
		t.Fatalf("expected late joiner to be kicked only, got %+v", res)
	}
	if len(h.guild.kicked) != kickedBefore+1 || h.guild.kicked[len(h.guild.kicked)-1] != "late" {
		t.Fatalf("expected late joiner kicked, got %v", h.guild.kicked)
	}
	if got := h.module.joins.Count("g1", h.now); got != countBefore {
		t.Fatalf("detector should not grow during lockdown: %d -> %d", countBefore, got)
	}
}

func TestRaidLocksAndRestoresChannels(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.join("u" + strconv.Itoa(i))
	}
	if len(h.guild.permSets) != 2 {
		t.Fatalf("expected two text channels locked, got %v", h.guild.permSets)
	}
	if h.guild.permSets["c1"][1]&discordgo.PermissionSendMessages == 0 {
		t.Fatalf("expected send denied on c1")
	}
	if h.guild.permSets["c1"][0] != discordgo.PermissionAttachFiles {
		t.Fatalf("existing allow bits should be kept")
	}
	if len(h.guild.sent) != 1 || h.guild.sent[0][:3] != "c2:" {
		t.Fatalf("expected announcement in first writable channel, got %v", h.guild.sent)
	}

	h.clock.fire()
	if h.pb.IsLockdown("g1").Lockdown {
		t.Fatalf("expected lockdown cleared")
	}
	if h.guild.permSets["c1"][1] != 0 || h.guild.permSets["c1"][0] != discordgo.PermissionAttachFiles {
		t.Fatalf("expected c1 overwrite restored, got %v", h.guild.permSets["c1"])
	}
	if len(h.guild.permDeletes) != 1 || h.guild.permDeletes[0] != "c2" {
		t.Fatalf("expected c2 overwrite deleted, got %v", h.guild.permDeletes)
	}
	if len(h.guild.sent) != 2 {
		t.Fatalf("expected lift announcement, got %v", h.guild.sent)
	}
}

func TestRaidKickFailuresDoNotAbort(t *testing.T) {
	h := newHarness(t)
	h.guild.failKick = map[string]bool{"u1": true}
	var res Result
	for i := 0; i < 5; i++ {
		res = h.join("u" + strconv.Itoa(i))
	}
	if !res.Triggered || res.Kicked != 4 {
		t.Fatalf("expected 4 kicks despite one failure, got %+v", res)
	}
}

func TestDisabledIsNoop(t *testing.T) {
	h := newHarness(t)
	off := false
	if _, err := h.module.SetEnabled(context.Background(), "g1", &off); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	for i := 0; i < 10; i++ {
		if h.join("u" + strconv.Itoa(i)).Triggered {
			t.Fatalf("disabled guard must not trigger")
		}
	}
	enabled, err := h.module.SetEnabled(context.Background(), "g1", nil)
	if err != nil || !enabled {
		t.Fatalf("expected toggle back on, got %v err=%v", enabled, err)
	}
}

func TestJoinsOutsideWindowDoNotTrigger(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 10; i++ {
		h.now = h.now.Add(10 * time.Second)
		if h.join("u" + strconv.Itoa(i)).Triggered {
			t.Fatalf("joins spaced 10s apart should never reach 5 within 30s")
		}
	}
}
