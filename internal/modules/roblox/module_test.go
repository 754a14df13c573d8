package roblox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"moodguard/internal/apperr"
	"moodguard/internal/config"

	"go.uber.org/zap"
)

type openCloud struct {
	mu       sync.Mutex
	apiCalls int
	apiKey   string
	bearer   string
	fields   map[string]string
	files    map[string]string
	query    map[string]string
	path     string
	body     string
	status   int
	reply    string
}

func (o *openCloud) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("rbx-bytes"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.apiCalls++
		o.apiKey = r.Header.Get("x-api-key")
		o.bearer = r.Header.Get("Authorization")
		o.path = r.URL.Path
		o.query = map[string]string{}
		for k := range r.URL.Query() {
			o.query[k] = r.URL.Query().Get(k)
		}
		o.fields = map[string]string{}
		o.files = map[string]string{}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k := range r.MultipartForm.Value {
				o.fields[k] = r.MultipartForm.Value[k][0]
			}
			for k, headers := range r.MultipartForm.File {
				f, err := headers[0].Open()
				if err != nil {
					t.Errorf("open part: %v", err)
					continue
				}
				data, _ := io.ReadAll(f)
				_ = f.Close()
				o.files[k] = string(data)
			}
		} else {
			data, _ := io.ReadAll(r.Body)
			o.body = string(data)
		}
		if o.status != 0 {
			http.Error(w, "forbidden", o.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(o.reply))
	})
	return mux
}

func newModule(t *testing.T, cloud *openCloud, mutate func(*config.RobloxConfig)) (*Module, string) {
	t.Helper()
	srv := httptest.NewServer(cloud.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.DefaultConfig().Roblox
	cfg.BaseURL = srv.URL
	cfg.APIKey = "cloud-key"
	cfg.UniverseID = "77"
	cfg.PlaceID = "88"
	cfg.AuthorizedUsers = []string{"u1"}
	cfg.RequestsPerSecond = 100
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, NewClient(cfg), nil, zap.NewNop()), srv.URL
}

func TestUploadSendsModelAsset(t *testing.T) {
	cloud := &openCloud{reply: `{"assetId":"12345"}`}
	m, base := newModule(t, cloud, nil)

	id, err := m.Upload(context.Background(), "u1", "g1", base+"/files/model.rbxm", "model.rbxm")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "12345" {
		t.Fatalf("unexpected asset id %q", id)
	}
	if cloud.path != "/assets/v1/assets" || cloud.apiKey != "cloud-key" {
		t.Fatalf("unexpected request path=%q key=%q", cloud.path, cloud.apiKey)
	}
	var meta assetRequest
	if err := json.Unmarshal([]byte(cloud.fields["request"]), &meta); err != nil {
		t.Fatalf("request field: %v", err)
	}
	if meta.AssetType != "Model" || meta.DisplayName != "Discord Upload" {
		t.Fatalf("unexpected asset metadata %+v", meta)
	}
	if cloud.files["fileContent"] != "rbx-bytes" {
		t.Fatalf("unexpected file content %q", cloud.files["fileContent"])
	}
}

func TestCommandsRequireAuthorizedUser(t *testing.T) {
	cloud := &openCloud{reply: `{}`}
	m, base := newModule(t, cloud, nil)
	ctx := context.Background()
	value := "1"

	if _, err := m.Upload(ctx, "u2", "g1", base+"/files/a", ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := m.Publish(ctx, "u2", "g1", base+"/files/a", ""); !apperr.Is(err, apperr.Authorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if _, err := m.Datastore(ctx, "u2", "g1", "set", "coins", "alice", &value); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if cloud.apiCalls != 0 {
		t.Fatalf("unauthorized calls must not reach the api, got %d", cloud.apiCalls)
	}
}

func TestUploadWithoutAttachment(t *testing.T) {
	m, _ := newModule(t, &openCloud{}, nil)
	if _, err := m.Upload(context.Background(), "u1", "g1", "", ""); !errors.Is(err, ErrNoAttachment) {
		t.Fatalf("expected missing attachment, got %v", err)
	}
}

func TestPublishDefaultsToConfiguredPlace(t *testing.T) {
	cloud := &openCloud{reply: `{"versionNumber":3}`}
	m, base := newModule(t, cloud, nil)

	place, err := m.Publish(context.Background(), "u1", "g1", base+"/files/place.rbxl", "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if place != "88" || cloud.path != "/universes/v1/77/places/88/versions" {
		t.Fatalf("unexpected place %q path %q", place, cloud.path)
	}
	if cloud.fields["versionType"] != "Published" || cloud.files["file"] != "rbx-bytes" {
		t.Fatalf("unexpected form fields=%v files=%v", cloud.fields, cloud.files)
	}

	if _, err := m.Publish(context.Background(), "u1", "g1", base+"/files/place.rbxl", "99"); err != nil {
		t.Fatalf("publish explicit: %v", err)
	}
	if cloud.path != "/universes/v1/77/places/99/versions" {
		t.Fatalf("explicit place ignored, path %q", cloud.path)
	}
}

func TestDatastoreGetAndSet(t *testing.T) {
	cloud := &openCloud{reply: `{"value":"gold"}`}
	m, _ := newModule(t, cloud, nil)
	ctx := context.Background()

	line, err := m.Datastore(ctx, "u1", "g1", "GET", "coins", "alice", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if line != "coins[alice] = gold" {
		t.Fatalf("unexpected get line %q", line)
	}
	if cloud.query["datastoreName"] != "coins" || cloud.query["entryKey"] != "alice" {
		t.Fatalf("unexpected query %v", cloud.query)
	}

	cloud.reply = `{}`
	value := "5"
	line, err = m.Datastore(ctx, "u1", "g1", "set", "coins", "alice", &value)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if line != "Set coins[alice] = 5" || cloud.body != `{"value":"5"}` {
		t.Fatalf("unexpected set line %q body %q", line, cloud.body)
	}

	if _, err := m.Datastore(ctx, "u1", "g1", "delete", "coins", "alice", nil); !errors.Is(err, ErrBadAction) {
		t.Fatalf("expected bad action, got %v", err)
	}
	if _, err := m.Datastore(ctx, "u1", "g1", "set", "coins", "alice", nil); !errors.Is(err, ErrMissingValue) {
		t.Fatalf("expected missing value, got %v", err)
	}
}

func TestAPIFailuresAreExternal(t *testing.T) {
	cloud := &openCloud{status: http.StatusForbidden}
	m, _ := newModule(t, cloud, nil)
	if _, err := m.Datastore(context.Background(), "u1", "g1", "get", "coins", "alice", nil); !apperr.Is(err, apperr.ExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}

	unconfigured, _ := newModule(t, &openCloud{}, func(cfg *config.RobloxConfig) { cfg.APIKey = "" })
	if _, err := unconfigured.Datastore(context.Background(), "u1", "g1", "get", "coins", "alice", nil); !apperr.Is(err, apperr.ExternalService) {
		t.Fatalf("expected external service error without credentials, got %v", err)
	}
}

func TestAccessTokenUsesBearer(t *testing.T) {
	cloud := &openCloud{reply: `{"value":1}`}
	m, _ := newModule(t, cloud, func(cfg *config.RobloxConfig) {
		cfg.APIKey = ""
		cfg.AccessToken = "oauth-token"
	})
	line, err := m.Datastore(context.Background(), "u1", "g1", "get", "coins", "alice", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if line != "coins[alice] = 1" {
		t.Fatalf("unexpected line %q", line)
	}
	if cloud.bearer != "Bearer oauth-token" || cloud.apiKey != "" {
		t.Fatalf("expected bearer auth only, got bearer=%q key=%q", cloud.bearer, cloud.apiKey)
	}
}

func TestDownloadRejectsOversizedFiles(t *testing.T) {
	m, base := newModule(t, &openCloud{reply: `{"assetId":"1"}`}, nil)
	m.maxBytes = 4
	if _, err := m.Upload(context.Background(), "u1", "g1", base+"/files/big", ""); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
}

func TestIsGameQuestion(t *testing.T) {
	cases := map[string]bool{
		"What should I add to my Roblox game?": true,
		"should i do this in my game":          true,
		"what should i add to my pizza":        false,
		"my roblox game is fun":                false,
	}
	for text, want := range cases {
		if got := IsGameQuestion(text); got != want {
			t.Fatalf("IsGameQuestion(%q) = %v, want %v", text, got, want)
		}
	}
}
