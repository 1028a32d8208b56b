package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service settings. Sources are applied in order:
// defaults, the YAML file named by AVL_CONFIG, environment variables.
type Config struct {
	TCPPort      string        `yaml:"tcp_port"`
	MetricsPort  string        `yaml:"metrics_port"`
	GRPCServer   string        `yaml:"grpc_server"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisDB      int           `yaml:"redis_db"`
	RedisTTL     time.Duration `yaml:"redis_ttl"`
	ProxyAddr    string        `yaml:"proxy_addr"`
	LogFormat    string        `yaml:"log_format"`
	LogLevel     string        `yaml:"log_level"`
	MaxFrameSize int           `yaml:"max_frame_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	RawLogDir    string        `yaml:"raw_log_dir"`
}

func Default() Config {
	return Config{
		TCPPort:      "8001",
		MetricsPort:  "9000",
		GRPCServer:   "",
		RedisAddr:    "localhost:6379",
		RedisTTL:     10 * time.Minute,
		LogFormat:    "json",
		LogLevel:     "info",
		MaxFrameSize: 64 * 1024,
		ReadTimeout:  5 * time.Minute,
		RawLogDir:    "logs",
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("AVL_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. Empty values are ignored
// except for addresses, where an explicitly empty variable disables the
// collaborator.
func applyEnv(c *Config) error {
	var firstErr error
	setErr := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	c.TCPPort = getEnv("TCP_PORT", c.TCPPort)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RawLogDir = getEnv("RAW_LOG_DIR", c.RawLogDir)
	if v, ok := os.LookupEnv("GRPC_SERVER"); ok {
		c.GRPCServer = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		c.RedisAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("PROXY_ADDR"); ok {
		c.ProxyAddr = strings.TrimSpace(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		} else {
			setErr("REDIS_DB", err)
		}
	}
	if v := getEnv("MAX_FRAME_SIZE", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxFrameSize = n
		} else {
			setErr("MAX_FRAME_SIZE", err)
		}
	}
	if v := getEnv("REDIS_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RedisTTL = d
		} else {
			setErr("REDIS_TTL", err)
		}
	}
	if v := getEnv("READ_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReadTimeout = d
		} else {
			setErr("READ_TIMEOUT", err)
		}
	}
	return firstErr
}

// Validate checks values and ranges only; it opens nothing.
func (c Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.TCPPort == "" {
		return errors.New("tcp port must be set")
	}
	if _, err := strconv.ParseUint(c.TCPPort, 10, 16); err != nil {
		return fmt.Errorf("invalid tcp port %q", c.TCPPort)
	}
	// 8 header + 2 codec/count + 1 trailing count + 4 crc
	if c.MaxFrameSize < 15 {
		return fmt.Errorf("max frame size must be >= 15 (got %d)", c.MaxFrameSize)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be > 0")
	}
	if c.RedisTTL < 0 {
		return errors.New("redis ttl must be >= 0")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis db must be >= 0 (got %d)", c.RedisDB)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
