package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/snoo/internal/reddit"
)

// Retry bounds retries of a single fetch.
type Retry struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// Config is the resolved snoo configuration.
type Config struct {
	Subreddits    []string
	DefaultSort   reddit.Sort
	UserAgent     string
	APIBase       string
	PageSize      int
	CommentLimit  int
	MoreBatch     int
	CacheCapacity int
	MaxInFlight   int
	Retry         Retry
	LogFile       string
}

const (
	defaultConfigPath    = "~/.config/snoo/config.toml"
	defaultLogFile       = "~/.local/state/snoo/snoo.log"
	defaultCacheCapacity = 256
	defaultMaxInFlight   = 4
	defaultMaxAttempts   = 3
	defaultBaseDelay     = 500 * time.Millisecond
	defaultMaxDelay      = 30 * time.Second
	defaultAttemptTime   = 10 * time.Second
)

var defaultSubreddits = []string{"golang", "rust", "programming"}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Subreddits:    append([]string(nil), defaultSubreddits...),
		DefaultSort:   reddit.SortHot,
		UserAgent:     reddit.DefaultUserAgent,
		APIBase:       reddit.DefaultBaseURL,
		PageSize:      reddit.DefaultPageSize,
		CommentLimit:  reddit.DefaultCommentLimit,
		MoreBatch:     reddit.DefaultMoreBatch,
		CacheCapacity: defaultCacheCapacity,
		MaxInFlight:   defaultMaxInFlight,
		Retry: Retry{
			MaxAttempts:    defaultMaxAttempts,
			BaseDelay:      defaultBaseDelay,
			MaxDelay:       defaultMaxDelay,
			AttemptTimeout: defaultAttemptTime,
		},
		LogFile: mustExpand(defaultLogFile),
	}
}

type rawConfig struct {
	Subs          []string `toml:"subs"`
	DefaultSort   string   `toml:"default_sort"`
	UserAgent     string   `toml:"user_agent"`
	APIBase       string   `toml:"api_base"`
	PageSize      int      `toml:"page_size"`
	CacheCapacity int      `toml:"cache_capacity"`
	MaxInFlight   int      `toml:"max_in_flight"`
	LogFile       string   `toml:"log_file"`
	Retry         struct {
		MaxAttempts    int    `toml:"max_attempts"`
		BaseDelay      string `toml:"base_delay"`
		MaxDelay       string `toml:"max_delay"`
		AttemptTimeout string `toml:"attempt_timeout"`
	} `toml:"retry"`
	Comments struct {
		Limit     int `toml:"limit"`
		MoreBatch int `toml:"more_batch"`
	} `toml:"comments"`
}

// Load locates and parses the snoo config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.Subs != nil {
		cfg.Subreddits = nil
		for _, sub := range raw.Subs {
			if sub = strings.TrimSpace(sub); sub != "" {
				cfg.Subreddits = append(cfg.Subreddits, sub)
			}
		}
	}
	sort, ok := reddit.ParseSort(raw.DefaultSort)
	if !ok {
		return Config{}, fmt.Errorf("parse config: unknown default_sort %q", raw.DefaultSort)
	}
	cfg.DefaultSort = sort
	if ua := strings.TrimSpace(raw.UserAgent); ua != "" {
		cfg.UserAgent = ua
	}
	if base := strings.TrimSpace(raw.APIBase); base != "" {
		cfg.APIBase = base
	}
	cfg.PageSize = positive(raw.PageSize, cfg.PageSize)
	cfg.CommentLimit = positive(raw.Comments.Limit, cfg.CommentLimit)
	cfg.MoreBatch = positive(raw.Comments.MoreBatch, cfg.MoreBatch)
	cfg.CacheCapacity = positive(raw.CacheCapacity, cfg.CacheCapacity)
	cfg.MaxInFlight = positive(raw.MaxInFlight, cfg.MaxInFlight)
	cfg.Retry.MaxAttempts = positive(raw.Retry.MaxAttempts, cfg.Retry.MaxAttempts)

	durations := []struct {
		name string
		raw  string
		dest *time.Duration
	}{
		{"retry.base_delay", raw.Retry.BaseDelay, &cfg.Retry.BaseDelay},
		{"retry.max_delay", raw.Retry.MaxDelay, &cfg.Retry.MaxDelay},
		{"retry.attempt_timeout", raw.Retry.AttemptTimeout, &cfg.Retry.AttemptTimeout},
	}
	for _, d := range durations {
		value := strings.TrimSpace(d.raw)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("parse config: invalid %s %q", d.name, d.raw)
		}
		*d.dest = parsed
	}

	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}

	return cfg, nil
}

func positive(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
