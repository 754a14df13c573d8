package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken              string          `yaml:"discord_token"`
	DatabasePath              string          `yaml:"database_path"`
	LogLevel                  string          `yaml:"log_level"`
	LogFile                   string          `yaml:"log_file"`
	OwnerIDs                  []string        `yaml:"owner_ids"`
	MoodAdminID               string          `yaml:"mood_admin_id"`
	DefaultSecurityLogChannel string          `yaml:"default_security_log_channel"`
	RetentionDays             int             `yaml:"retention_days"`
	Health                    HealthConfig    `yaml:"health"`
	Redis                     RedisConfig     `yaml:"redis"`
	Security                  SecurityConfig  `yaml:"security"`
	Filter                    FilterConfig    `yaml:"filter"`
	Economy                   EconomyConfig   `yaml:"economy"`
	AI                        AIConfig        `yaml:"ai"`
	Cover                     CoverConfig     `yaml:"cover"`
	Context                   ContextConfig   `yaml:"context"`
	Memory                    MemoryConfig    `yaml:"memory"`
	Cooldowns                 CooldownsConfig `yaml:"cooldowns"`
	Roblox                    RobloxConfig    `yaml:"roblox"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RedisConfig selects the shared cooldown backend. Empty Addr keeps cooldowns in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SecurityConfig struct {
	RaidEnabled            bool `yaml:"raid_enabled"`
	RaidJoins              int  `yaml:"raid_joins"`
	RaidWindowSeconds      int  `yaml:"raid_window_seconds"`
	LockdownMinutes        int  `yaml:"lockdown_minutes"`
	NukeEnabled            bool `yaml:"nuke_enabled"`
	NukeChannelCreates     int  `yaml:"nuke_channel_creates"`
	NukeWindowSeconds      int  `yaml:"nuke_window_seconds"`
	NukeDuplicateThreshold int  `yaml:"nuke_duplicate_threshold"`
}

type FilterConfig struct {
	WarnLimit          int      `yaml:"warn_limit"`
	BaseTimeoutMinutes int      `yaml:"base_timeout_minutes"`
	MaxTimeoutMinutes  int      `yaml:"max_timeout_minutes"`
	DecayHours         int      `yaml:"decay_hours"`
	BlockInvites       bool     `yaml:"block_invites"`
	BannedTerms        []string `yaml:"banned_terms"`
}

type EconomyConfig struct {
	StartingBalance int `yaml:"starting_balance"`
	DailyMin        int `yaml:"daily_min"`
	DailyMax        int `yaml:"daily_max"`
}

type CooldownsConfig struct {
	DailyHours   int `yaml:"daily_hours"`
	WorkMinutes  int `yaml:"work_minutes"`
	CoverMinutes int `yaml:"cover_minutes"`
	HelpSeconds  int `yaml:"help_seconds"`
}

type AIConfig struct {
	APIKey            string  `yaml:"api_key"`
	Endpoint          string  `yaml:"endpoint"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxOutputTokens   int     `yaml:"max_output_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type CoverConfig struct {
	APIKey                   string       `yaml:"api_key"`
	BaseURL                  string       `yaml:"base_url"`
	Cost                     int          `yaml:"cost"`
	PollIntervalSeconds      int          `yaml:"poll_interval_seconds"`
	PollAttempts             int          `yaml:"poll_attempts"`
	RetentionHours           int          `yaml:"retention_hours"`
	SweepMinutes             int          `yaml:"sweep_minutes"`
	SelectionTimeoutMinutes  int          `yaml:"selection_timeout_minutes"`
	MaxConcurrentExtractions int          `yaml:"max_concurrent_extractions"`
	SubmitTimeoutSeconds     int          `yaml:"submit_timeout_seconds"`
	RequestTimeoutSeconds    int          `yaml:"request_timeout_seconds"`
	ExtractTimeoutSeconds    int          `yaml:"extract_timeout_seconds"`
	YTDLPPath                string       `yaml:"ytdlp_path"`
	WorkDir                  string       `yaml:"work_dir"`
	Models                   []VoiceModel `yaml:"models"`
}

type VoiceModel struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RobloxConfig drives the Open Cloud commands. Only AuthorizedUsers may run them.
// AccessToken, when set, authenticates as an OAuth app instead of APIKey.
type RobloxConfig struct {
	APIKey            string   `yaml:"api_key"`
	AccessToken       string   `yaml:"access_token"`
	BaseURL           string   `yaml:"base_url"`
	UniverseID        string   `yaml:"universe_id"`
	PlaceID           string   `yaml:"place_id"`
	AuthorizedUsers   []string `yaml:"authorized_users"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	MaxFileMB         int      `yaml:"max_file_mb"`
}

type ContextConfig struct {
	UserHistory    int `yaml:"user_history"`
	ChannelHistory int `yaml:"channel_history"`
	RenderLines    int `yaml:"render_lines"`
	StaleDays      int `yaml:"stale_days"`
}

type MemoryConfig struct {
	Key              string `yaml:"key"`
	MaxGlobalEntries int    `yaml:"max_global_entries"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/moodguard.db",
		LogLevel:      "info",
		RetentionDays: 14,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Security: SecurityConfig{
			RaidEnabled:            true,
			RaidJoins:              5,
			RaidWindowSeconds:      30,
			LockdownMinutes:        60,
			NukeEnabled:            true,
			NukeChannelCreates:     3,
			NukeWindowSeconds:      10,
			NukeDuplicateThreshold: 3,
		},
		Filter: FilterConfig{
			WarnLimit:          3,
			BaseTimeoutMinutes: 5,
			MaxTimeoutMinutes:  1440,
			DecayHours:         12,
			BlockInvites:       true,
			BannedTerms:        DefaultBannedTerms(),
		},
		Economy: EconomyConfig{StartingBalance: 100, DailyMin: 100, DailyMax: 200},
		Cooldowns: CooldownsConfig{
			DailyHours:   24,
			WorkMinutes:  60,
			CoverMinutes: 5,
			HelpSeconds:  10,
		},
		AI: AIConfig{
			Endpoint:          "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent",
			TimeoutSeconds:    30,
			MaxOutputTokens:   150,
			RequestsPerSecond: 2,
		},
		Cover: CoverConfig{
			BaseURL:                  "https://api.topmediai.com/v1",
			Cost:                     50,
			PollIntervalSeconds:      10,
			PollAttempts:             60,
			RetentionHours:           24,
			SweepMinutes:             60,
			SelectionTimeoutMinutes:  5,
			MaxConcurrentExtractions: 2,
			SubmitTimeoutSeconds:     60,
			RequestTimeoutSeconds:    30,
			ExtractTimeoutSeconds:    300,
			YTDLPPath:                "yt-dlp",
			WorkDir:                  "",
			Models:                   DefaultVoiceModels(),
		},
		Context: ContextConfig{UserHistory: 20, ChannelHistory: 50, RenderLines: 30, StaleDays: 7},
		Memory:  MemoryConfig{Key: "bot_memory", MaxGlobalEntries: 1000},
		Roblox: RobloxConfig{
			BaseURL:           "https://apis.roblox.com",
			TimeoutSeconds:    60,
			RequestsPerSecond: 1,
			MaxFileMB:         25,
		},
	}
}

func DefaultBannedTerms() []string {
	return []string{
		"fuck", "dick", "bitch", "porn", "stfu", "cunt", "prick",
		"nigga", "nigger", "pussy", "cock", "semen", "slave", "kill you",
	}
}

func DefaultVoiceModels() []VoiceModel {
	return []VoiceModel{
		{ID: "taylor_swift", Name: "Taylor Swift"},
		{ID: "ariana_grande", Name: "Ariana Grande"},
		{ID: "drake", Name: "Drake"},
		{ID: "ed_sheeran", Name: "Ed Sheeran"},
		{ID: "billie_eilish", Name: "Billie Eilish"},
		{ID: "the_weeknd", Name: "The Weeknd"},
		{ID: "dua_lipa", Name: "Dua Lipa"},
		{ID: "justin_bieber", Name: "Justin Bieber"},
		{ID: "adele", Name: "Adele"},
		{ID: "post_malone", Name: "Post Malone"},
		{ID: "olivia_rodrigo", Name: "Olivia Rodrigo"},
		{ID: "bruno_mars", Name: "Bruno Mars"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	// .env never overrides variables already present in the environment.
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", envString("DISCORD_BOT_TOKEN", cfg.DiscordToken))
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = envString("LOG_FILE", cfg.LogFile)
	cfg.OwnerIDs = envList("OWNER_IDS", cfg.OwnerIDs)
	cfg.MoodAdminID = envString("MOOD_ADMIN_ID", cfg.MoodAdminID)
	cfg.DefaultSecurityLogChannel = envString("DEFAULT_SECURITY_LOG_CHANNEL", cfg.DefaultSecurityLogChannel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Security.RaidEnabled = envBool("RAID_ENABLED", cfg.Security.RaidEnabled)
	cfg.Security.RaidJoins = envInt("RAID_JOINS", cfg.Security.RaidJoins)
	cfg.Security.RaidWindowSeconds = envInt("RAID_WINDOW_SECONDS", cfg.Security.RaidWindowSeconds)
	cfg.Security.LockdownMinutes = envInt("LOCKDOWN_MINUTES", cfg.Security.LockdownMinutes)
	cfg.Security.NukeEnabled = envBool("NUKE_ENABLED", cfg.Security.NukeEnabled)
	cfg.Security.NukeChannelCreates = envInt("NUKE_CHANNEL_CREATES", cfg.Security.NukeChannelCreates)
	cfg.Security.NukeWindowSeconds = envInt("NUKE_WINDOW_SECONDS", cfg.Security.NukeWindowSeconds)
	cfg.Filter.WarnLimit = envInt("FILTER_WARN_LIMIT", cfg.Filter.WarnLimit)
	cfg.Filter.BaseTimeoutMinutes = envInt("FILTER_BASE_TIMEOUT_MINUTES", cfg.Filter.BaseTimeoutMinutes)
	cfg.Filter.MaxTimeoutMinutes = envInt("FILTER_MAX_TIMEOUT_MINUTES", cfg.Filter.MaxTimeoutMinutes)
	cfg.Filter.DecayHours = envInt("FILTER_DECAY_HOURS", cfg.Filter.DecayHours)
	cfg.Filter.BlockInvites = envBool("FILTER_BLOCK_INVITES", cfg.Filter.BlockInvites)
	cfg.AI.APIKey = envString("GEMINI_API_KEY", cfg.AI.APIKey)
	cfg.AI.Endpoint = envString("AI_ENDPOINT", cfg.AI.Endpoint)
	cfg.Cover.APIKey = envString("TOPMEDIAI_API_KEY", cfg.Cover.APIKey)
	cfg.Cover.BaseURL = envString("COVER_BASE_URL", cfg.Cover.BaseURL)
	cfg.Cover.Cost = envInt("COVER_COST", cfg.Cover.Cost)
	cfg.Cover.YTDLPPath = envString("YTDLP_PATH", cfg.Cover.YTDLPPath)
	cfg.Cover.WorkDir = envString("COVER_WORK_DIR", cfg.Cover.WorkDir)
	cfg.Cover.MaxConcurrentExtractions = envInt("COVER_MAX_CONCURRENT_EXTRACTIONS", cfg.Cover.MaxConcurrentExtractions)
	cfg.Roblox.APIKey = envString("ROBLOX_API_KEY", cfg.Roblox.APIKey)
	cfg.Roblox.AccessToken = envString("ROBLOX_ACCESS_TOKEN", cfg.Roblox.AccessToken)
	cfg.Roblox.BaseURL = envString("ROBLOX_BASE_URL", cfg.Roblox.BaseURL)
	cfg.Roblox.UniverseID = envString("ROBLOX_UNIVERSE_ID", cfg.Roblox.UniverseID)
	cfg.Roblox.PlaceID = envString("ROBLOX_PLACE_ID", cfg.Roblox.PlaceID)
	cfg.Roblox.AuthorizedUsers = envList("ROBLOX_AUTHORIZED_USERS", cfg.Roblox.AuthorizedUsers)
}

// normalize replaces non-positive limits with their defaults.
func normalize(cfg *Config) {
	def := DefaultConfig()
	positive(&cfg.RetentionDays, def.RetentionDays)
	positive(&cfg.Security.RaidJoins, def.Security.RaidJoins)
	positive(&cfg.Security.RaidWindowSeconds, def.Security.RaidWindowSeconds)
	positive(&cfg.Security.LockdownMinutes, def.Security.LockdownMinutes)
	positive(&cfg.Security.NukeChannelCreates, def.Security.NukeChannelCreates)
	positive(&cfg.Security.NukeWindowSeconds, def.Security.NukeWindowSeconds)
	positive(&cfg.Security.NukeDuplicateThreshold, def.Security.NukeDuplicateThreshold)
	positive(&cfg.Filter.WarnLimit, def.Filter.WarnLimit)
	positive(&cfg.Filter.BaseTimeoutMinutes, def.Filter.BaseTimeoutMinutes)
	positive(&cfg.Filter.DecayHours, def.Filter.DecayHours)
	if cfg.Filter.MaxTimeoutMinutes < 0 {
		cfg.Filter.MaxTimeoutMinutes = 0
	}
	positive(&cfg.Economy.DailyMin, def.Economy.DailyMin)
	if cfg.Economy.DailyMax < cfg.Economy.DailyMin {
		cfg.Economy.DailyMax = cfg.Economy.DailyMin
	}
	positive(&cfg.Cooldowns.DailyHours, def.Cooldowns.DailyHours)
	positive(&cfg.Cooldowns.WorkMinutes, def.Cooldowns.WorkMinutes)
	positive(&cfg.Cooldowns.CoverMinutes, def.Cooldowns.CoverMinutes)
	positive(&cfg.Cooldowns.HelpSeconds, def.Cooldowns.HelpSeconds)
	positive(&cfg.AI.TimeoutSeconds, def.AI.TimeoutSeconds)
	positive(&cfg.AI.MaxOutputTokens, def.AI.MaxOutputTokens)
	if cfg.AI.RequestsPerSecond <= 0 {
		cfg.AI.RequestsPerSecond = def.AI.RequestsPerSecond
	}
	positive(&cfg.Cover.Cost, def.Cover.Cost)
	positive(&cfg.Cover.PollIntervalSeconds, def.Cover.PollIntervalSeconds)
	positive(&cfg.Cover.PollAttempts, def.Cover.PollAttempts)
	positive(&cfg.Cover.RetentionHours, def.Cover.RetentionHours)
	positive(&cfg.Cover.SweepMinutes, def.Cover.SweepMinutes)
	positive(&cfg.Cover.SelectionTimeoutMinutes, def.Cover.SelectionTimeoutMinutes)
	positive(&cfg.Cover.MaxConcurrentExtractions, def.Cover.MaxConcurrentExtractions)
	positive(&cfg.Cover.SubmitTimeoutSeconds, def.Cover.SubmitTimeoutSeconds)
	positive(&cfg.Cover.RequestTimeoutSeconds, def.Cover.RequestTimeoutSeconds)
	positive(&cfg.Cover.ExtractTimeoutSeconds, def.Cover.ExtractTimeoutSeconds)
	if len(cfg.Cover.Models) == 0 {
		cfg.Cover.Models = def.Cover.Models
	}
	if cfg.Cover.YTDLPPath == "" {
		cfg.Cover.YTDLPPath = def.Cover.YTDLPPath
	}
	positive(&cfg.Context.UserHistory, def.Context.UserHistory)
	positive(&cfg.Context.ChannelHistory, def.Context.ChannelHistory)
	positive(&cfg.Context.RenderLines, def.Context.RenderLines)
	positive(&cfg.Context.StaleDays, def.Context.StaleDays)
	positive(&cfg.Memory.MaxGlobalEntries, def.Memory.MaxGlobalEntries)
	if cfg.Memory.Key == "" {
		cfg.Memory.Key = def.Memory.Key
	}
	if cfg.Roblox.BaseURL == "" {
		cfg.Roblox.BaseURL = def.Roblox.BaseURL
	}
	positive(&cfg.Roblox.TimeoutSeconds, def.Roblox.TimeoutSeconds)
	positive(&cfg.Roblox.MaxFileMB, def.Roblox.MaxFileMB)
	if cfg.Roblox.RequestsPerSecond <= 0 {
		cfg.Roblox.RequestsPerSecond = def.Roblox.RequestsPerSecond
	}
}

func positive(value *int, fallback int) {
	if *value <= 0 {
		*value = fallback
	}
}

func BuildLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return logger, nil
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotating, cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
