package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken        string            `yaml:"discord_token"`
	GuildID             string            `yaml:"guild_id"`
	DatabasePath        string            `yaml:"database_path"`
	LogLevel            string            `yaml:"log_level"`
	StaffRoleID         string            `yaml:"staff_role_id"`
	AdminRoleID         string            `yaml:"admin_role_id"`
	OpsLogChannel       string            `yaml:"ops_log_channel"`
	AnnouncementChannel string            `yaml:"announcement_channel"`
	Health              HealthConfig      `yaml:"health"`
	Tiers               []TierConfig      `yaml:"tiers"`
	Tickets             TicketConfig      `yaml:"tickets"`
	Translation         TranslationConfig `yaml:"translation"`
	Voting              VotingConfig      `yaml:"voting"`
	Notifications       NotifyConfig      `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TierConfig describes one community tier. Tiers are listed lowest first;
// a manager of a higher tier also manages every tier below it.
type TierConfig struct {
	Name          string `yaml:"name"`
	RoleID        string `yaml:"role_id"`
	TrialRoleID   string `yaml:"trial_role_id"`
	ManagerRoleID string `yaml:"manager_role_id"`
	VoteChannel   string `yaml:"vote_channel"`
	VouchChannel  string `yaml:"vouch_channel"`
}

type TicketConfig struct {
	Categories []TicketCategoryConfig `yaml:"categories"`
}

type TicketCategoryConfig struct {
	Name              string `yaml:"name"`
	OpenCategoryID    string `yaml:"open_category_id"`
	ArchiveCategoryID string `yaml:"archive_category_id"`
	LogChannelID      string `yaml:"log_channel_id"`
	AdminOnly         bool   `yaml:"admin_only"`
}

type TranslationConfig struct {
	Enabled           bool     `yaml:"enabled"`
	TriggerEmoji      string   `yaml:"trigger_emoji"`
	ForbiddenChannels []string `yaml:"forbidden_channels"`
	AbuseThreshold    int      `yaml:"abuse_threshold"`
	WindowSeconds     int      `yaml:"window_seconds"`
	SweepSeconds      int      `yaml:"sweep_seconds"`
}

type VotingConfig struct {
	VouchThreshold int `yaml:"vouch_threshold"`
}

type NotifyConfig struct {
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Primary int `yaml:"primary"`
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/warden.db",
		LogLevel:     "info",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Translation: TranslationConfig{
			Enabled:        true,
			TriggerEmoji:   "🌐",
			AbuseThreshold: 4,
			WindowSeconds:  60,
			SweepSeconds:   60,
		},
		Voting: VotingConfig{VouchThreshold: 6},
		Notifications: NotifyConfig{
			EmbedColors: EmbedColors{
				Primary: 0x1E90FF,
				Success: 0x2ECC71,
				Error:   0xEF4444,
			},
		},
	}
}

func Load() (Config, error) {
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
	if cfg.Translation.AbuseThreshold <= 0 {
		cfg.Translation.AbuseThreshold = 4
	}
	if cfg.Translation.WindowSeconds <= 0 {
		cfg.Translation.WindowSeconds = 60
	}
	if cfg.Translation.SweepSeconds <= 0 {
		cfg.Translation.SweepSeconds = 60
	}
	if cfg.Voting.VouchThreshold <= 0 {
		cfg.Voting.VouchThreshold = 6
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.StaffRoleID = envString("STAFF_ROLE_ID", cfg.StaffRoleID)
	cfg.AdminRoleID = envString("ADMIN_ROLE_ID", cfg.AdminRoleID)
	cfg.OpsLogChannel = envString("OPS_LOG_CHANNEL", cfg.OpsLogChannel)
	cfg.AnnouncementChannel = envString("ANNOUNCEMENT_CHANNEL", cfg.AnnouncementChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Translation.Enabled = envBool("TRANSLATION_ENABLED", cfg.Translation.Enabled)
	cfg.Translation.AbuseThreshold = envInt("TRANSLATION_ABUSE_THRESHOLD", cfg.Translation.AbuseThreshold)
	cfg.Translation.WindowSeconds = envInt("TRANSLATION_WINDOW_SECONDS", cfg.Translation.WindowSeconds)
	cfg.Translation.SweepSeconds = envInt("TRANSLATION_SWEEP_SECONDS", cfg.Translation.SweepSeconds)
	cfg.Voting.VouchThreshold = envInt("VOUCH_THRESHOLD", cfg.Voting.VouchThreshold)
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

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
