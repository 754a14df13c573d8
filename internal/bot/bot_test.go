package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"moodguard/internal/analytics"
	"moodguard/internal/apperr"
	"moodguard/internal/config"
	"moodguard/internal/cover"
	"moodguard/internal/economy"
	"moodguard/internal/modules/roblox"

	"github.com/bwmarrin/discordgo"
)

func TestAddressedToMentionAndReply(t *testing.T) {
	bot := &discordgo.User{ID: "42"}
	msg := &discordgo.Message{Content: "<@42> how are you", Mentions: []*discordgo.User{bot}}
	text, ok := addressedTo("42", msg)
	if !ok || text != "how are you" {
		t.Fatalf("expected stripped mention, got %q %v", text, ok)
	}

	bare := &discordgo.Message{Content: "<@!42>", Mentions: []*discordgo.User{bot}}
	if text, ok := addressedTo("42", bare); !ok || text != "Hello" {
		t.Fatalf("expected greeting for bare mention, got %q %v", text, ok)
	}

	reply := &discordgo.Message{Content: "sure", ReferencedMessage: &discordgo.Message{Author: bot}}
	if text, ok := addressedTo("42", reply); !ok || text != "sure" {
		t.Fatalf("expected reply to be addressed, got %q %v", text, ok)
	}

	other := &discordgo.Message{Content: "hi", ReferencedMessage: &discordgo.Message{Author: &discordgo.User{ID: "7"}}}
	if _, ok := addressedTo("42", other); ok {
		t.Fatalf("reply to someone else must be ignored")
	}
}

func TestParseCustomID(t *testing.T) {
	kind, ticket, model, ok := parseCustomID("cover:abc-123:drake")
	if !ok || kind != coverPrefix || ticket != "abc-123" || model != "drake" {
		t.Fatalf("unexpected parse %q %q %q %v", kind, ticket, model, ok)
	}
	kind, job, _, ok := parseCustomID("cover-status:job:7")
	if !ok || kind != coverStatusPrefix || job != "job:7" {
		t.Fatalf("unexpected status parse %q %q %v", kind, job, ok)
	}
	for _, bad := range []string{"cover:abc", "cover::drake", "other:1", "cover-status:"} {
		if _, _, _, ok := parseCustomID(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestModelButtonsLayout(t *testing.T) {
	rows := modelButtons("t1", config.DefaultVoiceModels())
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows for 12 models, got %d", len(rows))
	}
	first := rows[0].(discordgo.ActionsRow)
	if len(first.Components) != 5 {
		t.Fatalf("expected 5 buttons per row, got %d", len(first.Components))
	}
	button := first.Components[0].(discordgo.Button)
	if !strings.HasPrefix(button.CustomID, "cover:t1:") {
		t.Fatalf("unexpected custom id %q", button.CustomID)
	}
}

func TestIsPrivileged(t *testing.T) {
	owners := []string{"1", "2"}
	if !isPrivileged(owners, "", "2") {
		t.Fatalf("configured owner must be privileged")
	}
	if !isPrivileged(owners, "9", "9") {
		t.Fatalf("guild owner must be privileged")
	}
	if isPrivileged(owners, "9", "5") || isPrivileged(owners, "", "") {
		t.Fatalf("others must not be privileged")
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&cover.CooldownError{Remaining: 90 * time.Second}, "Slow down! Try again in 1m 30s."},
		{economy.ErrInsufficientFunds, "You don't have enough coins for that."},
		{cover.ErrInvalidSource, "That is not a YouTube video link."},
		{roblox.ErrNotAuthorized, "You're not authorized to use the roblox commands."},
		{apperr.New(apperr.ExternalService, "ai", "boom"), "An outside service didn't cooperate. Please try again later."},
		{errors.New("db locked"), "Something went wrong. Please try again later."},
	}
	for _, tc := range cases {
		if got := userMessage(tc.err); got != tc.want {
			t.Fatalf("userMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestFormatWait(t *testing.T) {
	if got := formatWait(23*time.Hour + 5*time.Minute); got != "23h 5m" {
		t.Fatalf("unexpected %q", got)
	}
	if got := formatWait(200 * time.Millisecond); got != "1s" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestFormatReport(t *testing.T) {
	report := analytics.Report{
		Total:   4,
		ByLevel: map[string]int{"WARN": 3, "CRIT": 1},
		Events:  []analytics.EventCount{{Event: "filter_delete_warn", Count: 3}, {Event: "raid_lockdown", Count: 1}},
	}
	got := formatReport(report)
	if !strings.HasPrefix(got, "Total: 4 | INFO: 0 | WARN: 3 | CRIT: 1") || !strings.Contains(got, "filter_delete_warn: 3") {
		t.Fatalf("unexpected report %q", got)
	}
}

func TestDisplayNamePrefersNick(t *testing.T) {
	user := &discordgo.User{ID: "1", Username: "alice"}
	if got := displayName(user, &discordgo.Member{Nick: "Al"}); got != "Al" {
		t.Fatalf("expected nick, got %q", got)
	}
	cache := newNameCache(nil, 8, nameTTL)
	cache.remember(user, nil)
	if name, ok := cache.DisplayName("1"); !ok || name != "alice" {
		t.Fatalf("expected cached username, got %q %v", name, ok)
	}
	if _, ok := cache.DisplayName("2"); ok {
		t.Fatalf("unknown user must not resolve")
	}
}

func TestNameCacheExpires(t *testing.T) {
	cache := newNameCache(nil, 8, 20*time.Millisecond)
	cache.remember(&discordgo.User{ID: "1", Username: "alice"}, nil)
	if _, ok := cache.DisplayName("1"); !ok {
		t.Fatalf("expected fresh entry")
	}
	time.Sleep(60 * time.Millisecond)
	if name, ok := cache.DisplayName("1"); ok {
		t.Fatalf("expected expired entry, got %q", name)
	}
}

func TestAttachmentOptionResolves(t *testing.T) {
	file := &discordgo.MessageAttachment{ID: "900", URL: "https://cdn.example/place.rbxl", Filename: "place.rbxl"}
	data := discordgo.ApplicationCommandInteractionData{
		Name: "publish",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "file", Type: discordgo.ApplicationCommandOptionAttachment, Value: "900"},
		},
		Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
			Attachments: map[string]*discordgo.MessageAttachment{"900": file},
		},
	}
	opts := optionMap(data.Options)
	if got := attachmentOption(data, opts, "file"); got != file {
		t.Fatalf("expected resolved attachment, got %+v", got)
	}
	if got := attachmentOption(data, opts, "missing"); got != nil {
		t.Fatalf("expected nil for missing option, got %+v", got)
	}
	data.Resolved = nil
	if got := attachmentOption(data, opts, "file"); got != nil {
		t.Fatalf("expected nil without resolved data, got %+v", got)
	}
}

func TestHelpEmbedListsRobloxForAuthorizedUsers(t *testing.T) {
	has := func(embed *discordgo.MessageEmbed, name string) bool {
		for _, field := range embed.Fields {
			if field.Name == name {
				return true
			}
		}
		return false
	}
	if has(helpEmbed(false, false, false), "Roblox") {
		t.Fatalf("roblox commands shown to an unauthorized user")
	}
	if !has(helpEmbed(false, false, true), "Roblox") {
		t.Fatalf("roblox commands missing for an authorized user")
	}
}
