package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/wfunc/memoryserver/models"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Game        GameConfig        `mapstructure:"game"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress       string `mapstructure:"http_address"`
	RPCAddress        string `mapstructure:"rpc_address"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	AdminTokenHours   int    `mapstructure:"admin_token_hours"`
	// Connections without inbound traffic for IdleTimeoutSeconds are closed.
	HeartbeatSeconds   int `mapstructure:"heartbeat_seconds"`
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GameConfig holds the competitive defaults and the areas to host.
type GameConfig struct {
	Defaults models.Settings `mapstructure:"defaults"`
	// Seed makes board generation reproducible when set. Leave empty in production.
	Seed  string   `mapstructure:"seed"`
	Areas []string `mapstructure:"areas"`
}

type LeaderboardConfig struct {
	DefaultDisplayCount int      `mapstructure:"default_display_count"`
	DefaultSortType     string   `mapstructure:"default_sort_type"`
	VisibleFields       []string `mapstructure:"visible_fields"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.admin_password_hash", "")
	v.SetDefault("server.admin_token_hours", 12)
	v.SetDefault("server.heartbeat_seconds", 30)
	v.SetDefault("server.idle_timeout_seconds", 300)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "data/leaderboard.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "memorygame")

	v.SetDefault("game.defaults.starting_lives", 3)
	v.SetDefault("game.defaults.starting_board_size.rows", 4)
	v.SetDefault("game.defaults.starting_board_size.columns", 4)
	v.SetDefault("game.defaults.memorization_time_seconds", 5)
	v.SetDefault("game.defaults.guessing_time_seconds", 15)
	v.SetDefault("game.defaults.increasing_difficulty", true)
	v.SetDefault("game.defaults.target_tiles_percentage", 0.25)
	v.SetDefault("game.defaults.is_playable", true)
	v.SetDefault("game.defaults.unknown_tile_color", "white")
	v.SetDefault("game.defaults.tile_shape", "square")
	v.SetDefault("game.seed", "")
	v.SetDefault("game.areas", []string{"memory-game-1"})

	v.SetDefault("leaderboard.default_display_count", 10)
	v.SetDefault("leaderboard.default_sort_type", "score")
	v.SetDefault("leaderboard.visible_fields", []string{"score", "date", "playerUsername", "gameType"})

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path. A missing file falls back to defaults
// and MEMORY_* environment variables.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("memory")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}

// LeaderboardSettings converts the leaderboard section into display settings.
func (c LeaderboardConfig) LeaderboardSettings() models.LeaderboardSettings {
	fields := make([]models.LeaderboardField, 0, len(c.VisibleFields))
	for _, f := range c.VisibleFields {
		fields = append(fields, models.LeaderboardField(f))
	}
	return models.LeaderboardSettings{
		DefaultDisplayCount: c.DefaultDisplayCount,
		DefaultSortType:     models.LeaderboardField(c.DefaultSortType),
		VisibleFields:       fields,
	}
}
