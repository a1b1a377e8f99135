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
	DiscordToken      string            `yaml:"discord_token"`
	DatabasePath      string            `yaml:"database_path"`
	LogLevel          string            `yaml:"log_level"`
	HubGuildID        string            `yaml:"hub_guild_id"`
	CommandsChannelID string            `yaml:"commands_channel_id"`
	EmailDomain       string            `yaml:"email_domain"`
	VerifyMessage     string            `yaml:"verify_message"`
	Channels          ChannelConfig     `yaml:"channels"`
	Roles             RoleConfig        `yaml:"roles"`
	Timeouts          TimeoutConfig     `yaml:"timeouts"`
	Maintenance       MaintenanceConfig `yaml:"maintenance"`
	Health            HealthConfig      `yaml:"health"`
}

type ChannelConfig struct {
	Landing string `yaml:"landing"`
	OpsLog  string `yaml:"ops_log"`
}

type RoleConfig struct {
	RA        string `yaml:"ra"`
	Residents string `yaml:"residents"`
}

type TimeoutConfig struct {
	// SelectionSeconds is how long an ambiguous join keeps its invite
	// candidates before the member has to ask staff instead.
	SelectionSeconds int `yaml:"selection_seconds"`
}

type MaintenanceConfig struct {
	CronSpec        string `yaml:"cron_spec"`
	PendingTTLHours int    `yaml:"pending_ttl_hours"`
	RetentionDays   int    `yaml:"retention_days"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/pittbot.db",
		LogLevel:      "info",
		EmailDomain:   "@pitt.edu",
		VerifyMessage: "Click the button below to get verified!",
		Channels:      ChannelConfig{Landing: "verify", OpsLog: "logs"},
		Roles:         RoleConfig{RA: "RA", Residents: "residents"},
		Timeouts:      TimeoutConfig{SelectionSeconds: 180},
		Maintenance:   MaintenanceConfig{CronSpec: "0 4 * * *", PendingTTLHours: 48, RetentionDays: 30},
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
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
		return Config{}, errors.New("PITTBOT_TOKEN is required")
	}
	if cfg.Timeouts.SelectionSeconds <= 0 {
		cfg.Timeouts.SelectionSeconds = 180
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("PITTBOT_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.HubGuildID = envString("HUB_GUILD_ID", cfg.HubGuildID)
	cfg.CommandsChannelID = envString("COMMANDS_CHANNEL_ID", cfg.CommandsChannelID)
	cfg.EmailDomain = envString("EMAIL_DOMAIN", cfg.EmailDomain)
	cfg.Channels.Landing = envString("LANDING_CHANNEL", cfg.Channels.Landing)
	cfg.Channels.OpsLog = envString("OPS_LOG_CHANNEL", cfg.Channels.OpsLog)
	cfg.Roles.RA = envString("RA_ROLE", cfg.Roles.RA)
	cfg.Roles.Residents = envString("RESIDENTS_ROLE", cfg.Roles.Residents)
	cfg.Timeouts.SelectionSeconds = envInt("SELECTION_SECONDS", cfg.Timeouts.SelectionSeconds)
	cfg.Maintenance.CronSpec = envString("MAINTENANCE_CRON", cfg.Maintenance.CronSpec)
	cfg.Maintenance.PendingTTLHours = envInt("PENDING_TTL_HOURS", cfg.Maintenance.PendingTTLHours)
	cfg.Maintenance.RetentionDays = envInt("RETENTION_DAYS", cfg.Maintenance.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
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
