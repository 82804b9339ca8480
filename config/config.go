package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds everything the server needs at startup. Values come from an
// optional JSON file, with environment variables taking precedence so
// container deployments can skip the file entirely.
type Config struct {
	Port    int    `json:"port"`
	BaseURL string `json:"baseUrl"`
	DataDir string `json:"dataDir"`

	TraktClientID     string `json:"traktClientId"`
	TraktClientSecret string `json:"traktClientSecret"`

	TMDBAPIKey   string `json:"tmdbApiKey"`
	TMDBLanguage string `json:"tmdbLanguage"`

	// CacheDB is a SQLite DSN; when set the cache is backed by disk,
	// otherwise it stays purely in memory.
	CacheDB string `json:"cacheDb"`

	LogFile string `json:"logFile"`

	// AdminToken guards the admin API in addition to the private-network
	// check. Empty disables the token check.
	AdminToken string `json:"adminToken"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Port:         7000,
		DataDir:      "data",
		TMDBLanguage: "en-US",
	}
}

// Load builds the effective config: defaults, then the JSON file at path
// (if it exists), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// No file is fine; env and defaults carry it.
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLIXRANK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	setIfEnv(&cfg.BaseURL, "FLIXRANK_BASE_URL")
	setIfEnv(&cfg.DataDir, "FLIXRANK_DATA_DIR")
	setIfEnv(&cfg.TraktClientID, "TRAKT_CLIENT_ID")
	setIfEnv(&cfg.TraktClientSecret, "TRAKT_CLIENT_SECRET")
	setIfEnv(&cfg.TMDBAPIKey, "TMDB_API_KEY")
	setIfEnv(&cfg.TMDBLanguage, "FLIXRANK_TMDB_LANGUAGE")
	setIfEnv(&cfg.CacheDB, "FLIXRANK_CACHE_DB")
	setIfEnv(&cfg.LogFile, "FLIXRANK_LOG_FILE")
	setIfEnv(&cfg.AdminToken, "FLIXRANK_ADMIN_TOKEN")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RedirectURI is the OAuth callback registered with Trakt.
func (c Config) RedirectURI() string {
	return c.BaseURL + "/callback"
}

// TraktConfigured reports whether OAuth linking can work at all.
func (c Config) TraktConfigured() bool {
	return c.TraktClientID != "" && c.TraktClientSecret != ""
}
