// Package roblox runs the Open Cloud management commands (asset upload, place publish and
// datastore access) for an allow-list of users, and answers game questions in chat.
package roblox

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
	"moodguard/internal/modules/audit"

	"go.uber.org/zap"
)

const GameAdvice = "That sounds like a great idea for your Roblox game! Maybe try something unique like a new mechanic or challenge?"

var (
	ErrNotAuthorized = apperr.New(apperr.Authorization, "roblox", "you're not authorized to use the roblox commands")
	ErrNoAttachment  = apperr.New(apperr.Validation, "roblox", "please attach a file")
	ErrFileTooLarge  = apperr.New(apperr.Validation, "roblox.download", "that file is too large")
	ErrBadAction     = apperr.New(apperr.Validation, "roblox.datastore", "use get or set as the action")
	ErrMissingValue  = apperr.New(apperr.Validation, "roblox.datastore", "missing value for set")
	ErrMissingTarget = apperr.New(apperr.Validation, "roblox.datastore", "datastore name and key are required")
	ErrNoPlace       = apperr.New(apperr.Validation, "roblox.publish", "no place id given or configured")
)

// API is the Open Cloud surface the module drives.
type API interface {
	UploadAsset(ctx context.Context, data []byte, filename string) (string, error)
	Publish(ctx context.Context, placeID string, data []byte) error
	GetEntry(ctx context.Context, store, key string) (string, error)
	SetEntry(ctx context.Context, store, key, value string) error
}

type Module struct {
	api          API
	authorized   []string
	defaultPlace string
	maxBytes     int64
	audit        *audit.Logger
	logger       *zap.Logger

	// Downloads is the client used to fetch attachments.
	Downloads *http.Client
}

func New(cfg config.RobloxConfig, api API, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		api:          api,
		authorized:   cfg.AuthorizedUsers,
		defaultPlace: cfg.PlaceID,
		maxBytes:     int64(cfg.MaxFileMB) << 20,
		audit:        auditLogger,
		logger:       logger,
	}
}

func (m *Module) Authorized(userID string) bool {
	return userID != "" && slices.Contains(m.authorized, userID)
}

// Upload downloads the attachment and creates a Model asset from it.
func (m *Module) Upload(ctx context.Context, actor, guildID, attachmentURL, filename string) (string, error) {
	data, err := m.fetch(ctx, actor, attachmentURL)
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = "upload.file"
	}
	assetID, err := m.api.UploadAsset(ctx, data, filename)
	if err != nil {
		m.logger.Warn("roblox upload failed", zap.String("user_id", actor), zap.Error(err))
		return "", err
	}
	m.record(ctx, guildID, actor, "roblox_upload", "asset="+assetID)
	return assetID, nil
}

// Publish pushes the attached place file to placeID, or to the configured place when empty.
func (m *Module) Publish(ctx context.Context, actor, guildID, attachmentURL, placeID string) (string, error) {
	if !m.Authorized(actor) {
		return "", ErrNotAuthorized
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		placeID = m.defaultPlace
	}
	if placeID == "" {
		return "", ErrNoPlace
	}
	data, err := m.fetch(ctx, actor, attachmentURL)
	if err != nil {
		return "", err
	}
	if err := m.api.Publish(ctx, placeID, data); err != nil {
		m.logger.Warn("roblox publish failed", zap.String("user_id", actor), zap.String("place", placeID), zap.Error(err))
		return "", err
	}
	m.record(ctx, guildID, actor, "roblox_publish", "place="+placeID)
	return placeID, nil
}

// Datastore runs a get or set against a standard datastore and returns the reply line.
func (m *Module) Datastore(ctx context.Context, actor, guildID, action, store, key string, value *string) (string, error) {
	if !m.Authorized(actor) {
		return "", ErrNotAuthorized
	}
	store, key = strings.TrimSpace(store), strings.TrimSpace(key)
	if store == "" || key == "" {
		return "", ErrMissingTarget
	}
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "get":
		got, err := m.api.GetEntry(ctx, store, key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s] = %s", store, key, got), nil
	case "set":
		if value == nil {
			return "", ErrMissingValue
		}
		if err := m.api.SetEntry(ctx, store, key, *value); err != nil {
			return "", err
		}
		m.record(ctx, guildID, actor, "roblox_datastore_set", fmt.Sprintf("store=%s key=%s", store, key))
		return fmt.Sprintf("Set %s[%s] = %s", store, key, *value), nil
	default:
		return "", ErrBadAction
	}
}

func (m *Module) fetch(ctx context.Context, actor, attachmentURL string) ([]byte, error) {
	if !m.Authorized(actor) {
		return nil, ErrNotAuthorized
	}
	if strings.TrimSpace(attachmentURL) == "" {
		return nil, ErrNoAttachment
	}
	return Download(ctx, m.Downloads, attachmentURL, m.maxBytes)
}

func (m *Module) record(ctx context.Context, guildID, actor, event, details string) {
	if m.audit != nil {
		m.audit.Log(ctx, audit.LevelInfo, guildID, actor, event, details)
	}
}

var gameQuestions = []string{"what should i add", "should i do this"}

// IsGameQuestion reports whether content asks for advice about a game.
func IsGameQuestion(content string) bool {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "roblox") && !strings.Contains(lower, "game") {
		return false
	}
	for _, q := range gameQuestions {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}
