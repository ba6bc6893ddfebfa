package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Discord    DiscordConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Ops        OpsConfig
	Warden     WardenConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Host    string
	Port    string
	Version string
}

// DiscordConfig holds the platform connection values. An empty token
// switches the service to the in-memory gateway for local development.
type DiscordConfig struct {
	Token string
	AppID string
	// GuildID scopes slash command registration to one guild during
	// development; empty registers commands globally.
	GuildID string
}

// PostgresConfig holds DB connection values for the audit trail.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the mute markers.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// OpsConfig defines authentication for the ops HTTP API.
type OpsConfig struct {
	JWTSecret         string
	TokenTTLMinutes   int
	AdminPasswordHash string
	BcryptCost        int
}

// WardenConfig holds the automation defaults.
type WardenConfig struct {
	ConfigDir           string
	BackupDir           string
	MutedRoleName       string
	MutedRoleColor      int
	CloseGraceSeconds   int
	DefaultMuteDuration string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "guild-warden"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "8080"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			Token:   os.Getenv("DISCORD_TOKEN"),
			AppID:   os.Getenv("DISCORD_APP_ID"),
			GuildID: os.Getenv("DISCORD_GUILD_ID"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Ops: OpsConfig{
			JWTSecret:         getEnv("OPS_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes:   getEnvAsInt("OPS_TOKEN_TTL_MINUTES", 60),
			AdminPasswordHash: os.Getenv("OPS_ADMIN_PASSWORD_HASH"),
			BcryptCost:        getEnvAsInt("OPS_BCRYPT_COST", 12),
		},
		Warden: WardenConfig{
			ConfigDir:           getEnv("WARDEN_CONFIG_DIR", "configs"),
			BackupDir:           getEnv("WARDEN_BACKUP_DIR", "backups"),
			MutedRoleName:       getEnv("WARDEN_MUTED_ROLE", "Muted"),
			MutedRoleColor:      getEnvAsInt("WARDEN_MUTED_ROLE_COLOR", 0x808080),
			CloseGraceSeconds:   getEnvAsInt("WARDEN_CLOSE_GRACE_SECONDS", 10),
			DefaultMuteDuration: getEnv("WARDEN_DEFAULT_MUTE_DURATION", "1h"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address for the ops API.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// CloseGrace returns the delay between closing a ticket and deleting
// its channel.
func (w WardenConfig) CloseGrace() time.Duration {
	if w.CloseGraceSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.CloseGraceSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
