package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig
	World   WorldConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MessageRate caps inbound messages per second per session; MessageBurst
	// is the attached burst allowance.
	MessageRate  float64
	MessageBurst int
}

type WorldConfig struct {
	DBPath    string
	ContentDB string
	Seed      int64

	TickRate      int
	ViewDistance  int
	FlushInterval time.Duration

	// Chunk eviction: chunks beyond EvictRadius (in chunks) of every player
	// are eligible once more than MaxLoadedChunks are resident.
	EvictRadius     int
	MaxLoadedChunks int
}

type LoggingConfig struct {
	Level      string
	Format     string
	Structured bool
}

// Load builds the configuration from environment variables, then overlays an
// optional YAML file named by CONFIG_FILE (or ./fabrica.yml when present).
// CLI flags in cmd/server override both.
func Load() (*Config, error) {
	cfg := fromEnv()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat("fabrica.yml"); err == nil {
			path = "fabrica.yml"
		}
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnvStr("HOST", "0.0.0.0"),
			Port:            getEnvStr("PORT", "5555"),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			MessageRate:     getEnvFloat("MESSAGE_RATE", 120),
			MessageBurst:    getEnvInt("MESSAGE_BURST", 240),
		},
		World: WorldConfig{
			DBPath:          getEnvStr("DB_PATH", "./saves/world.db"),
			ContentDB:       getEnvStr("CONTENT_DB", ""),
			Seed:            getEnvInt64("WORLD_SEED", 0),
			TickRate:        getEnvInt("TICK_RATE", 60),
			ViewDistance:    getEnvInt("VIEW_DISTANCE", 3),
			FlushInterval:   getEnvDuration("FLUSH_INTERVAL", 30*time.Second),
			EvictRadius:     getEnvInt("EVICT_RADIUS", 6),
			MaxLoadedChunks: getEnvInt("MAX_LOADED_CHUNKS", 512),
		},
		Logging: LoggingConfig{
			Level:      getEnvStr("LOG_LEVEL", "info"),
			Format:     getEnvStr("LOG_FORMAT", "json"),
			Structured: getEnvBool("LOG_STRUCTURED", true),
		},
	}
}

// fileConfig mirrors Config for the YAML overlay. Pointer fields distinguish
// "absent" from zero values; durations are strings in time.ParseDuration form.
type fileConfig struct {
	Server struct {
		Host            *string  `yaml:"host"`
		Port            *string  `yaml:"port"`
		IdleTimeout     *string  `yaml:"idle_timeout"`
		ShutdownTimeout *string  `yaml:"shutdown_timeout"`
		MessageRate     *float64 `yaml:"message_rate"`
		MessageBurst    *int     `yaml:"message_burst"`
	} `yaml:"server"`
	World struct {
		DBPath          *string `yaml:"db_path"`
		ContentDB       *string `yaml:"content_db"`
		Seed            *int64  `yaml:"seed"`
		TickRate        *int    `yaml:"tick_rate"`
		ViewDistance    *int    `yaml:"view_distance"`
		FlushInterval   *string `yaml:"flush_interval"`
		EvictRadius     *int    `yaml:"evict_radius"`
		MaxLoadedChunks *int    `yaml:"max_loaded_chunks"`
	} `yaml:"world"`
	Logging struct {
		Level      *string `yaml:"level"`
		Format     *string `yaml:"format"`
		Structured *bool   `yaml:"structured"`
	} `yaml:"logging"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setStr(&c.Server.Host, f.Server.Host)
	setStr(&c.Server.Port, f.Server.Port)
	if err := setDuration(&c.Server.IdleTimeout, f.Server.IdleTimeout); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := setDuration(&c.Server.ShutdownTimeout, f.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if f.Server.MessageRate != nil {
		c.Server.MessageRate = *f.Server.MessageRate
	}
	if f.Server.MessageBurst != nil {
		c.Server.MessageBurst = *f.Server.MessageBurst
	}

	setStr(&c.World.DBPath, f.World.DBPath)
	setStr(&c.World.ContentDB, f.World.ContentDB)
	if f.World.Seed != nil {
		c.World.Seed = *f.World.Seed
	}
	if f.World.TickRate != nil {
		c.World.TickRate = *f.World.TickRate
	}
	if f.World.ViewDistance != nil {
		c.World.ViewDistance = *f.World.ViewDistance
	}
	if err := setDuration(&c.World.FlushInterval, f.World.FlushInterval); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if f.World.EvictRadius != nil {
		c.World.EvictRadius = *f.World.EvictRadius
	}
	if f.World.MaxLoadedChunks != nil {
		c.World.MaxLoadedChunks = *f.World.MaxLoadedChunks
	}

	setStr(&c.Logging.Level, f.Logging.Level)
	setStr(&c.Logging.Format, f.Logging.Format)
	if f.Logging.Structured != nil {
		c.Logging.Structured = *f.Logging.Structured
	}

	return nil
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", *src, err)
	}
	*dst = d
	return nil
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
