package chatlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
)

type memBlobs struct {
	data map[string][]byte
	puts int
}

func newMemBlobs() *memBlobs { return &memBlobs{data: make(map[string][]byte)} }

func (m *memBlobs) GetBlob(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBlobs) PutBlob(_ context.Context, key string, value []byte) error {
	m.data[key] = append([]byte(nil), value...)
	m.puts++
	return nil
}

func testConfig(limit int) config.MemoryConfig {
	return config.MemoryConfig{Key: "bot_memory", MaxGlobalEntries: limit}
}

func TestRecordCapsAndPersists(t *testing.T) {
	blobs := newMemBlobs()
	log := New(blobs, testConfig(3), "keeper", nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := log.Record(ctx, Message{AuthorID: "u1", AuthorName: "alice", GuildID: "g1", Content: "hi", At: time.Unix(int64(i), 0)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if log.Len() != 3 {
		t.Fatalf("expected cap of 3, got %d", log.Len())
	}
	if blobs.puts != 5 {
		t.Fatalf("expected a rewrite per mutation, got %d", blobs.puts)
	}

	var doc document
	if err := json.Unmarshal(blobs.data["bot_memory"], &doc); err != nil {
		t.Fatalf("stored document is not json: %v", err)
	}
	if len(doc.GlobalChat) != 3 || len(doc.UserData["u1"].Messages) != 5 {
		t.Fatalf("unexpected stored document %+v", doc)
	}

	reloaded := New(blobs, testConfig(3), "keeper", nil)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if reloaded.Len() != 3 {
		t.Fatalf("expected reloaded entries, got %d", reloaded.Len())
	}
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	blobs := newMemBlobs()
	blobs.data["bot_memory"] = []byte("{not json")
	log := New(blobs, testConfig(10), "keeper", nil)
	err := log.Load(context.Background())
	if !apperr.Is(err, apperr.StateCorruption) {
		t.Fatalf("expected state corruption, got %v", err)
	}
	if err := log.Record(context.Background(), Message{AuthorID: "u1", Content: "x"}); err != nil {
		t.Fatalf("record after corrupt load: %v", err)
	}
	if log.Len() != 1 {
		t.Fatalf("expected fresh log, got %d", log.Len())
	}
}

func TestAddGameRequiresKeeper(t *testing.T) {
	log := New(newMemBlobs(), testConfig(10), "keeper", nil)
	ctx := context.Background()
	if err := log.AddGame(ctx, "other", "Obby"); !apperr.Is(err, apperr.Authorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := log.AddGame(ctx, "keeper", "  "); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := log.AddGame(ctx, "keeper", "Obby"); err != nil {
		t.Fatalf("add game: %v", err)
	}
	if games := log.Games("keeper"); len(games) != 1 || games[0] != "Obby" {
		t.Fatalf("unexpected games %v", games)
	}
}

func TestClearGuildKeepsOtherGuilds(t *testing.T) {
	log := New(newMemBlobs(), testConfig(10), "keeper", nil)
	ctx := context.Background()
	_ = log.Record(ctx, Message{AuthorID: "keeper", GuildID: "g1", Content: "game update soon"})
	_ = log.Record(ctx, Message{AuthorID: "u2", GuildID: "g2", Content: "hello"})

	removed, err := log.ClearGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected global and user entry removed, got %d", removed)
	}
	if log.Len() != 1 {
		t.Fatalf("expected other guild kept, got %d", log.Len())
	}
	if len(log.doc.UserData["keeper"].GameUpdates) != 0 {
		t.Fatalf("expected game updates cleared")
	}
}
