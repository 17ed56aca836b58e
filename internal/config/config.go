package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string             `yaml:"discord_token"`
	DatabasePath    string             `yaml:"database_path"`
	LogLevel        string             `yaml:"log_level"`
	DefaultLanguage string             `yaml:"default_language"`
	RetentionDays   int                `yaml:"retention_days"`
	Health          HealthConfig       `yaml:"health"`
	LLM             LLMConfig          `yaml:"llm"`
	Parser          ParserConfig       `yaml:"parser"`
	Safety          SafetyConfig       `yaml:"safety"`
	Batch           BatchConfig        `yaml:"batch"`
	Confirmation    ConfirmationConfig `yaml:"confirmation"`
	Undo            UndoConfig         `yaml:"undo"`
	Session         SessionConfig      `yaml:"session"`
	Platform        PlatformConfig     `yaml:"platform"`
	Redis           RedisConfig        `yaml:"redis"`
	Notifications   NotifyConfig       `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	ChatEnabled    bool    `yaml:"chat_enabled"`
}

type ParserConfig struct {
	Threshold     float64 `yaml:"threshold"`
	CombineFloor  float64 `yaml:"combine_floor"`
	AgreementBump float64 `yaml:"agreement_bump"`
}

type SafetyConfig struct {
	ProtectListed          bool           `yaml:"protect_listed"`
	ProtectSelf            bool           `yaml:"protect_self"`
	ProtectBots            bool           `yaml:"protect_bots"`
	ProtectOwner           bool           `yaml:"protect_owner"`
	ProtectHigherRole      bool           `yaml:"protect_higher_role"`
	ProtectBotHierarchy    bool           `yaml:"protect_bot_hierarchy"`
	ConfirmActions         []string       `yaml:"confirm_actions"`
	ConfirmTargets         int            `yaml:"confirm_targets"`
	MaxPerMinute           int            `yaml:"max_per_minute"`
	MaxPerHour             int            `yaml:"max_per_hour"`
	DefaultCooldownSeconds int            `yaml:"default_cooldown_seconds"`
	CooldownSeconds        map[string]int `yaml:"cooldown_seconds"`
	Protected              []string       `yaml:"protected"`
	Blacklist              []string       `yaml:"blacklist"`
	Whitelist              []string       `yaml:"whitelist"`
}

type BatchConfig struct {
	MaxSize              int `yaml:"max_size"`
	DelayMs              int `yaml:"delay_ms"`
	JitterMs             int `yaml:"jitter_ms"`
	DrainIntervalSeconds int `yaml:"drain_interval_seconds"`
	HistorySize          int `yaml:"history_size"`
	ErrorBudget          int `yaml:"error_budget"`
}

type ConfirmationConfig struct {
	TimeoutSeconds       int `yaml:"timeout_seconds"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

type UndoConfig struct {
	WindowMinutes int `yaml:"window_minutes"`
	MaxEntries    int `yaml:"max_entries"`
}

type SessionConfig struct {
	StickyMinutes int `yaml:"sticky_minutes"`
	MemorySize    int `yaml:"memory_size"`
}

type PlatformConfig struct {
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
	MemberCacheSeconds int `yaml:"member_cache_seconds"`
	WarnForgiveDays    int `yaml:"warn_forgive_days"`
}

type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
	MaxLen int    `yaml:"max_len"`
}

type NotifyConfig struct {
	DMWarnEnabled  bool        `yaml:"dm_warn_enabled"`
	AuditToChannel bool        `yaml:"audit_to_channel"`
	AuditChannelID string      `yaml:"audit_channel_id"`
	EmbedColors    EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:    "/data/sentinel.db",
		LogLevel:        "info",
		DefaultLanguage: "vi",
		RetentionDays:   30,
		Health:          HealthConfig{Enabled: false, Addr: ":8080"},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 8,
			Temperature:    0.1,
			MaxTokens:      512,
			ChatEnabled:    true,
		},
		Parser: ParserConfig{Threshold: 0.8, CombineFloor: 0.3, AgreementBump: 0.1},
		Safety: SafetyConfig{
			ProtectListed:          true,
			ProtectSelf:            true,
			ProtectBots:            true,
			ProtectOwner:           true,
			ProtectHigherRole:      true,
			ProtectBotHierarchy:    true,
			ConfirmActions:         []string{"ban", "unban"},
			ConfirmTargets:         3,
			MaxPerMinute:           5,
			MaxPerHour:             30,
			DefaultCooldownSeconds: 2,
			CooldownSeconds:        map[string]int{"ban": 5, "unban": 5, "kick": 3},
		},
		Batch: BatchConfig{
			MaxSize:              10,
			DelayMs:              100,
			JitterMs:             50,
			DrainIntervalSeconds: 5,
			HistorySize:          100,
			ErrorBudget:          1000,
		},
		Confirmation: ConfirmationConfig{TimeoutSeconds: 30, SweepIntervalSeconds: 5},
		Undo:         UndoConfig{WindowMinutes: 5, MaxEntries: 10},
		Session:      SessionConfig{StickyMinutes: 5, MemorySize: 10000},
		Platform:     PlatformConfig{CallTimeoutSeconds: 10, MemberCacheSeconds: 30, WarnForgiveDays: 30},
		Redis:        RedisConfig{Stream: "sentinel:moderation", MaxLen: 10000},
		Notifications: NotifyConfig{
			DMWarnEnabled:  true,
			AuditToChannel: true,
			EmbedColors: EmbedColors{
				Action:  0xF59E0B,
				Warning: 0xEF4444,
				Error:   0xF97316,
			},
		},
	}
}

func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

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
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLanguage = envString("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.LLM.BaseURL = envString("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = envString("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = envString("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.TimeoutSeconds = envInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.Temperature = envFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.ChatEnabled = envBool("LLM_CHAT_ENABLED", cfg.LLM.ChatEnabled)
	cfg.Parser.Threshold = envFloat("PARSER_THRESHOLD", cfg.Parser.Threshold)
	cfg.Parser.CombineFloor = envFloat("PARSER_COMBINE_FLOOR", cfg.Parser.CombineFloor)
	cfg.Parser.AgreementBump = envFloat("PARSER_AGREEMENT_BUMP", cfg.Parser.AgreementBump)
	cfg.Safety.MaxPerMinute = envInt("SAFETY_MAX_PER_MINUTE", cfg.Safety.MaxPerMinute)
	cfg.Safety.MaxPerHour = envInt("SAFETY_MAX_PER_HOUR", cfg.Safety.MaxPerHour)
	cfg.Safety.Protected = envList("SAFETY_PROTECTED", cfg.Safety.Protected)
	cfg.Safety.Blacklist = envList("SAFETY_BLACKLIST", cfg.Safety.Blacklist)
	cfg.Safety.Whitelist = envList("SAFETY_WHITELIST", cfg.Safety.Whitelist)
	cfg.Batch.MaxSize = envInt("BATCH_MAX_SIZE", cfg.Batch.MaxSize)
	cfg.Batch.DelayMs = envInt("BATCH_DELAY_MS", cfg.Batch.DelayMs)
	cfg.Confirmation.TimeoutSeconds = envInt("CONFIRMATION_TIMEOUT_SECONDS", cfg.Confirmation.TimeoutSeconds)
	cfg.Undo.WindowMinutes = envInt("UNDO_WINDOW_MINUTES", cfg.Undo.WindowMinutes)
	cfg.Session.StickyMinutes = envInt("SESSION_STICKY_MINUTES", cfg.Session.StickyMinutes)
	cfg.Platform.CallTimeoutSeconds = envInt("PLATFORM_CALL_TIMEOUT_SECONDS", cfg.Platform.CallTimeoutSeconds)
	cfg.Redis.URL = envString("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Stream = envString("REDIS_STREAM", cfg.Redis.Stream)
	cfg.Notifications.DMWarnEnabled = envBool("DM_WARN_ENABLED", cfg.Notifications.DMWarnEnabled)
	cfg.Notifications.AuditToChannel = envBool("AUDIT_TO_CHANNEL", cfg.Notifications.AuditToChannel)
	cfg.Notifications.AuditChannelID = envString("AUDIT_CHANNEL_ID", cfg.Notifications.AuditChannelID)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
}

// normalize replaces out-of-range values with defaults.
func normalize(cfg *Config) {
	defaults := DefaultConfig()

	cfg.DefaultLanguage = normalizeLanguage(cfg.DefaultLanguage)
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaults.RetentionDays
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = defaults.LLM.TimeoutSeconds
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if !unit(cfg.Parser.Threshold) || cfg.Parser.Threshold == 0 {
		cfg.Parser.Threshold = defaults.Parser.Threshold
	}
	if !unit(cfg.Parser.CombineFloor) || cfg.Parser.CombineFloor > cfg.Parser.Threshold {
		cfg.Parser.CombineFloor = defaults.Parser.CombineFloor
		if cfg.Parser.CombineFloor > cfg.Parser.Threshold {
			cfg.Parser.CombineFloor = cfg.Parser.Threshold
		}
	}
	if !unit(cfg.Parser.AgreementBump) {
		cfg.Parser.AgreementBump = defaults.Parser.AgreementBump
	}
	if cfg.Safety.ConfirmTargets <= 0 {
		cfg.Safety.ConfirmTargets = defaults.Safety.ConfirmTargets
	}
	if cfg.Safety.MaxPerMinute <= 0 {
		cfg.Safety.MaxPerMinute = defaults.Safety.MaxPerMinute
	}
	if cfg.Safety.MaxPerHour < cfg.Safety.MaxPerMinute {
		cfg.Safety.MaxPerHour = max(defaults.Safety.MaxPerHour, cfg.Safety.MaxPerMinute)
	}
	if cfg.Safety.DefaultCooldownSeconds < 0 {
		cfg.Safety.DefaultCooldownSeconds = defaults.Safety.DefaultCooldownSeconds
	}
	if cfg.Batch.MaxSize <= 0 {
		cfg.Batch.MaxSize = defaults.Batch.MaxSize
	}
	if cfg.Batch.DelayMs < 0 {
		cfg.Batch.DelayMs = defaults.Batch.DelayMs
	}
	if cfg.Batch.JitterMs < 0 {
		cfg.Batch.JitterMs = 0
	}
	if cfg.Batch.DrainIntervalSeconds <= 0 {
		cfg.Batch.DrainIntervalSeconds = defaults.Batch.DrainIntervalSeconds
	}
	if cfg.Batch.HistorySize <= 0 {
		cfg.Batch.HistorySize = defaults.Batch.HistorySize
	}
	if cfg.Batch.ErrorBudget <= 0 {
		cfg.Batch.ErrorBudget = defaults.Batch.ErrorBudget
	}
	if cfg.Confirmation.TimeoutSeconds <= 0 {
		cfg.Confirmation.TimeoutSeconds = defaults.Confirmation.TimeoutSeconds
	}
	if cfg.Confirmation.SweepIntervalSeconds <= 0 {
		cfg.Confirmation.SweepIntervalSeconds = defaults.Confirmation.SweepIntervalSeconds
	}
	if cfg.Undo.WindowMinutes <= 0 {
		cfg.Undo.WindowMinutes = defaults.Undo.WindowMinutes
	}
	if cfg.Undo.MaxEntries <= 0 {
		cfg.Undo.MaxEntries = defaults.Undo.MaxEntries
	}
	if cfg.Session.StickyMinutes <= 0 {
		cfg.Session.StickyMinutes = defaults.Session.StickyMinutes
	}
	if cfg.Session.MemorySize <= 0 {
		cfg.Session.MemorySize = defaults.Session.MemorySize
	}
	if cfg.Platform.CallTimeoutSeconds <= 0 {
		cfg.Platform.CallTimeoutSeconds = defaults.Platform.CallTimeoutSeconds
	}
	if cfg.Platform.MemberCacheSeconds <= 0 {
		cfg.Platform.MemberCacheSeconds = defaults.Platform.MemberCacheSeconds
	}
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c SafetyConfig) Cooldown(action string) time.Duration {
	if seconds, ok := c.CooldownSeconds[action]; ok && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Duration(c.DefaultCooldownSeconds) * time.Second
}

func (c BatchConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

func (c BatchConfig) Jitter() time.Duration {
	return time.Duration(c.JitterMs) * time.Millisecond
}

func (c BatchConfig) DrainInterval() time.Duration {
	return time.Duration(c.DrainIntervalSeconds) * time.Second
}

func (c ConfirmationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ConfirmationConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c UndoConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

func (c SessionConfig) StickyWindow() time.Duration {
	return time.Duration(c.StickyMinutes) * time.Minute
}

func (c PlatformConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

func (c PlatformConfig) MemberCacheTTL() time.Duration {
	return time.Duration(c.MemberCacheSeconds) * time.Second
}

func (c PlatformConfig) WarnForgiveAfter() time.Duration {
	return time.Duration(c.WarnForgiveDays) * 24 * time.Hour
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
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

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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

// envList reads a comma separated list.
func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func normalizeLanguage(value string) string {
	switch strings.ToLower(value) {
	case "en", "english":
		return "en"
	default:
		return "vi"
	}
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
