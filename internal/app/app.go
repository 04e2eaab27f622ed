package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/snoo/internal/comments"
	"github.com/five82/snoo/internal/config"
	"github.com/five82/snoo/internal/fetch"
	"github.com/five82/snoo/internal/nav"
	"github.com/five82/snoo/internal/prefs"
	"github.com/five82/snoo/internal/reddit"
	"github.com/five82/snoo/internal/store"
	"github.com/five82/snoo/internal/ui"
)

// Options configure the snoo application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/snoo/prefs.toml
	Subreddit  string // opened on top of the directory at start; optional
	LogFile    string // overrides the configured log file; "-" disables logging
}

// Run boots the snoo TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logPath, err := resolveLogPath(cfg, opts.LogFile)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	userPrefs := loadPrefs(opts.PrefsPath)

	s, err := newSession(ctx, cfg, userPrefs.SortOr(cfg.DefaultSort), log.Default())
	if err != nil {
		return err
	}
	defer s.sched.Close()

	if opts.Subreddit != "" {
		if err := s.machine.OpenSubreddit(opts.Subreddit); err != nil {
			return fmt.Errorf("open %q: %w", opts.Subreddit, err)
		}
	}

	log.Printf("starting snoo: api %s, %d subreddits, cache %d, %d in flight",
		cfg.APIBase, len(cfg.Subreddits), cfg.CacheCapacity, cfg.MaxInFlight)

	err = ui.Run(ui.Options{
		Context:   ctx,
		Machine:   s.machine,
		Events:    s.sched.Events(),
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		LogPath:   logPath,
	})
	log.Printf("snoo exiting")
	return err
}

// session is one wired-up browsing core.
type session struct {
	client  *reddit.Client
	store   *store.Store
	sched   *fetch.Scheduler
	trees   *comments.Builder
	machine *nav.Machine
}

// newSession builds client, store, scheduler, comment trees and navigation
// from cfg. The machine starts on the subreddit directory with its first page
// already requested.
func newSession(ctx context.Context, cfg config.Config, sort reddit.Sort, logger *log.Logger) (*session, error) {
	client, err := reddit.NewClient(reddit.Options{
		BaseURL:      cfg.APIBase,
		UserAgent:    cfg.UserAgent,
		PageSize:     cfg.PageSize,
		CommentLimit: cfg.CommentLimit,
		MoreBatch:    cfg.MoreBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("init reddit client: %w", err)
	}

	st, err := store.New(cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("init content store: %w", err)
	}

	sched, err := fetch.New(ctx, fetch.Options{
		Client: client,
		Store:  st,
		Policy: fetch.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			BaseDelay:      cfg.Retry.BaseDelay,
			MaxDelay:       cfg.Retry.MaxDelay,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
		},
		MaxInFlight: cfg.MaxInFlight,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init fetch scheduler: %w", err)
	}

	trees := comments.NewBuilder(sched)
	machine, err := nav.New(nav.Options{
		Store:      st,
		Scheduler:  sched,
		Trees:      trees,
		Subreddits: cfg.Subreddits,
		Sort:       sort,
	})
	if err != nil {
		sched.Close()
		return nil, fmt.Errorf("init navigation: %w", err)
	}

	return &session{client: client, store: st, sched: sched, trees: trees, machine: machine}, nil
}

// loadPrefs reads preferences, falling back to the defaults Load returns
// when the file cannot be used.
func loadPrefs(path string) prefs.Prefs {
	p, err := prefs.Load(path)
	if err != nil {
		log.Printf("load prefs: %v; using defaults", err)
	}
	return p
}

func resolveLogPath(cfg config.Config, override string) (string, error) {
	switch override {
	case "":
		return cfg.LogFile, nil
	case "-":
		return "", nil
	}
	path, err := config.ExpandPath(override)
	if err != nil {
		return "", fmt.Errorf("resolve log file: %w", err)
	}
	return path, nil
}

// setupLogging routes the standard logger to path; the terminal belongs to the
// UI. An empty path discards log output.
func setupLogging(path string) (func(), error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := tea.LogToFile(path, "snoo")
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return func() { _ = f.Close() }, nil
}
