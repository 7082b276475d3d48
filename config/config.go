package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	// MaxRequiredPlayers is bounded by the palette size.
	MaxRequiredPlayers = 16
)

type Config struct {
	Port        string
	BindAddress string
	Storage     string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	RequiredPlayers int
	PublicURL       string
}

// Flags registers every setting on fs. Each flag can also be set through the
// environment variable named like it in upper snake case (db-host: DB_HOST).
func Flags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringP("port", "p", "8080", "port to listen on (env: PORT)")
	fs.StringP("bind-address", "b", "localhost", "address to bind to (env: BIND_ADDRESS)")
	fs.String("storage", StoragePostgres, "game storage backend, postgres or memory (env: STORAGE)")

	fs.String("db-host", "localhost", "postgres host (env: DB_HOST)")
	fs.String("db-port", "5432", "postgres port (env: DB_PORT)")
	fs.String("db-user", "colorgrid", "postgres user (env: DB_USER)")
	fs.String("db-password", "colorgrid123", "postgres password (env: DB_PASSWORD)")
	fs.String("db-name", "colorgrid", "postgres database (env: DB_NAME)")

	fs.String("redis-host", "", "redis host for the snapshot cache, empty disables it (env: REDIS_HOST)")
	fs.String("redis-port", "6379", "redis port (env: REDIS_PORT)")
	fs.String("redis-password", "", "redis password (env: REDIS_PASSWORD)")
	fs.Int("redis-db", 0, "redis database (env: REDIS_DB)")
	fs.Duration("snapshot-ttl", time.Hour, "how long game snapshots stay cached (env: SNAPSHOT_TTL)")

	fs.String("jwt-secret", "your-secret-key-change-in-production", "token signing secret (env: JWT_SECRET)")
	fs.Duration("token-ttl", 24*time.Hour, "lifetime of issued tokens (env: TOKEN_TTL)")

	fs.Int("required-players", 2, "players needed to start a game (env: REQUIRED_PLAYERS)")
	fs.String("public-url", "", "externally reachable base URL, used for the lobby QR code (env: PUBLIC_URL)")
}

// NewViper binds the flags of fs and the environment into one lookup.
// Explicit flags win over the environment, which wins over flag defaults.
func NewViper(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
	return v
}

func Load(v *viper.Viper) *Config {
	return &Config{
		Port:            v.GetString("port"),
		BindAddress:     v.GetString("bind-address"),
		Storage:         strings.ToLower(v.GetString("storage")),
		DBHost:          v.GetString("db-host"),
		DBPort:          v.GetString("db-port"),
		DBUser:          v.GetString("db-user"),
		DBPassword:      v.GetString("db-password"),
		DBName:          v.GetString("db-name"),
		RedisHost:       v.GetString("redis-host"),
		RedisPort:       v.GetString("redis-port"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		SnapshotTTL:     v.GetDuration("snapshot-ttl"),
		JWTSecret:       v.GetString("jwt-secret"),
		TokenTTL:        v.GetDuration("token-ttl"),
		RequiredPlayers: v.GetInt("required-players"),
		PublicURL:       v.GetString("public-url"),
	}
}

func (c *Config) Validate() error {
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("invalid storage %q (must be %s or %s)", c.Storage, StoragePostgres, StorageMemory)
	}
	if c.RequiredPlayers < 2 || c.RequiredPlayers > MaxRequiredPlayers {
		return fmt.Errorf("invalid required players (must be between 2-%d inclusive): %d", MaxRequiredPlayers, c.RequiredPlayers)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("invalid token ttl: %s", c.TokenTTL)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.BindAddress + ":" + c.Port
}

// CacheNamespace prefixes shared cache keys. In-memory storage restarts game
// ids on every boot, so each boot gets its own namespace.
func (c *Config) CacheNamespace() string {
	if c.Storage == StorageMemory {
		return "colorgrid:" + uuid.NewString()
	}
	return "colorgrid"
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// InitRedis returns nil when no redis host is configured.
func InitRedis(cfg *Config) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
