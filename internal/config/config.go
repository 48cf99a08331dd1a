package config

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	DBType          string
	DBDSN           string
	SQLitePath      string
	FileConnections string
	FileEntries     string

	AuthMode       string
	AuthLocalToken string
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string

	GitHubAPIURL    string
	NotionAPIURL    string
	NotionVersion   string
	SyncUserAgent   string
	SyncHTTPTimeout time.Duration

	LockBackend string
	RedisAddr   string
	LockTTL     time.Duration
}

var (
	cfg  *Config
	once sync.Once
)

func Load() *Config {
	once.Do(func() {
		c, err := LoadChecked()
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// LoadChecked reads .env and the environment and returns validation errors
// instead of panicking. It does not cache.
func LoadChecked() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	c := FromEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromEnv reads the configuration without validating or caching it.
func FromEnv() *Config {
	return &Config{
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8088"),
		DBType:          getEnv("STORAGE_BACKEND", "file"),
		DBDSN:           getEnv("POSTGRES_DSN", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "data/timeline.db"),
		FileConnections: getEnv("CONNECTIONS_FILE", "data/connections.json"),
		FileEntries:     getEnv("ENTRIES_FILE", "data/timeline_entries.json"),
		AuthMode:        getEnv("AUTH_MODE", "local"),
		AuthLocalToken:  getEnv("AUTH_LOCAL_TOKEN", "MOCK-TOKEN"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		JWTAudience:     getEnv("JWT_AUDIENCE", ""),
		GitHubAPIURL:    getEnv("GITHUB_API_URL", "https://api.github.com"),
		NotionAPIURL:    getEnv("NOTION_API_URL", "https://api.notion.com"),
		NotionVersion:   getEnv("NOTION_VERSION", "2022-06-28"),
		SyncUserAgent:   getEnv("SYNC_USER_AGENT", "personal-timeline-backend-app"),
		SyncHTTPTimeout: getDuration("SYNC_HTTP_TIMEOUT", 30*time.Second),
		LockBackend:     getEnv("LOCK_BACKEND", "memory"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		LockTTL:         getDuration("LOCK_TTL", 2*time.Minute),
	}
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case "file":
		if c.FileConnections == "" || c.FileEntries == "" {
			return errors.New("File storage requires CONNECTIONS_FILE and ENTRIES_FILE to be set")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: file, postgres, sqlite")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.AuthMode {
	case "local":
		if c.Env == "production" {
			return errors.New("AUTH_MODE=local is not allowed in production")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return errors.New("AUTH_MODE must be one of: local, jwt")
	}
	if c.LockBackend == "redis" && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when LOCK_BACKEND=redis")
	}
	if c.LockBackend != "memory" && c.LockBackend != "redis" {
		return errors.New("LOCK_BACKEND must be one of: memory, redis")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// loadDotEnv sets KEY=VALUE pairs from path without overriding variables
// that are already present in the environment.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
