package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/five82/snoo/internal/app"
)

func execute(t *testing.T, args ...string) (app.Options, bool, error) {
	t.Helper()
	var got app.Options
	called := false
	cmd := newRootCmd(func(_ context.Context, opts app.Options) error {
		got = opts
		called = true
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return got, called, err
}

func TestRootCmd_Flags(t *testing.T) {
	opts, called, err := execute(t,
		"--config", "/tmp/snoo.toml",
		"--prefs", "/tmp/prefs.toml",
		"--sub", "golang",
		"--log-file", "-",
	)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !called {
		t.Fatalf("app was not run")
	}
	want := app.Options{ConfigPath: "/tmp/snoo.toml", PrefsPath: "/tmp/prefs.toml", Subreddit: "golang", LogFile: "-"}
	if opts != want {
		t.Fatalf("options = %+v, want %+v", opts, want)
	}
}

func TestRootCmd_PositionalSubreddit(t *testing.T) {
	opts, _, err := execute(t, "rust")
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if opts.Subreddit != "rust" {
		t.Fatalf("Subreddit = %q, want rust", opts.Subreddit)
	}

	if _, called, err := execute(t, "rust", "--sub", "golang"); err == nil || called {
		t.Fatalf("conflicting subreddits: err = %v, called = %v", err, called)
	}
	if _, called, err := execute(t, "a", "b"); err == nil || called {
		t.Fatalf("two positional args: err = %v, called = %v", err, called)
	}
}

func TestRootCmd_PropagatesRunError(t *testing.T) {
	boom := errors.New("boom")
	cmd := newRootCmd(func(context.Context, app.Options) error { return boom })
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); !errors.Is(err, boom) {
		t.Fatalf("Execute() = %v, want %v", err, boom)
	}
}
