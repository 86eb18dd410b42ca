// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// tracedeck is an interactive terminal console for inspecting traces
// on a BICP backend. It shows the live trace set alongside per-day
// historical archives, polling the live set on a fixed cadence and
// fetching past days lazily as the operator expands them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/tracedeck/tracedeck/lib/bicp"
	"github.com/tracedeck/tracedeck/lib/config"
	"github.com/tracedeck/tracedeck/lib/daycache"
	"github.com/tracedeck/tracedeck/lib/tracestore"
	"github.com/tracedeck/tracedeck/lib/traceui"
	"github.com/tracedeck/tracedeck/lib/tracesync"
	"github.com/tracedeck/tracedeck/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var endpointFlag string
	var logOutput string
	var noCache bool

	flagSet := pflag.NewFlagSet("tracedeck", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to tracedeck.yaml (default: $TRACEDECK_CONFIG, or built-in defaults)")
	flagSet.StringVar(&endpointFlag, "endpoint", "", "BICP endpoint URL (overrides config)")
	flagSet.StringVar(&logOutput, "log-output", "", "write log records to this file (the TUI owns the terminal, so there is no stderr logging)")
	flagSet.BoolVar(&noCache, "no-cache", false, "disable the on-disk day cache")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other tooling.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("tracedeck")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tracedeck is an interactive console and requires a terminal")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if endpointFlag != "" {
		cfg.Endpoint.URL = endpointFlag
	}
	if logOutput != "" {
		cfg.Log.Output = logOutput
	}
	if noCache {
		cfg.Cache.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLogger, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	client, err := bicp.NewClient(bicp.ClientConfig{
		EndpointURL: cfg.Endpoint.URL,
		HTTPClient:  &http.Client{Timeout: cfg.RequestTimeout()},
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	session, err := bicp.NewSession(bicp.SessionConfig{
		Client:        client,
		ClientName:    "tracedeck",
		ClientVersion: version.Version,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()
	if err := session.Initialize(ctx); err != nil {
		return fmt.Errorf("cannot reach backend at %s: %w", cfg.Endpoint.URL, err)
	}

	var cache *daycache.Cache
	if !cfg.Cache.Disabled && cfg.Cache.Dir != "" {
		cache, err = daycache.Open(cfg.Cache.Dir, logger)
		if err != nil {
			// A broken cache directory degrades to uncached operation.
			logger.Warn("day cache unavailable", "dir", cfg.Cache.Dir, "error", err)
			cache = nil
		}
	}

	loop, err := tracesync.New(tracesync.Config{
		Backend: session,
		Store:   tracestore.New(),
		Cache:   cache,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	loop.Start()
	defer loop.Close()

	model := traceui.NewModel(loop)
	model.SetConnectionSwitcher(session)
	model.SetServerLabel(serverLabel(session))

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// openLogger builds the background logger. With no configured output
// file, records are discarded: the TUI owns the terminal and writing
// to stderr would corrupt the alt-screen display.
func openLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Log.Output == "" {
		handler := slog.NewTextHandler(io.Discard, nil)
		return slog.New(handler), func() {}, nil
	}

	if dir := filepath.Dir(cfg.Log.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(cfg.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: cfg.LogLevel()})
	return slog.New(handler), func() { file.Close() }, nil
}

// serverLabel formats the backend identity for the header bar.
func serverLabel(session *bicp.Session) string {
	info, ok := session.ServerInfo()
	if !ok {
		return ""
	}
	label := info.Name
	if info.Version != "" {
		label += " " + info.Version
	}
	if negotiated := session.NegotiatedVersion(); negotiated != "" {
		label += " · bicp " + negotiated
	}
	return label
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tracedeck — interactive terminal console for trace inspection.

Connects to a BICP backend, polls the live trace set every few
seconds, and lets you browse per-day historical archives. Past days
load lazily when expanded and are cached on disk, so reopening a day
is instant.

Configuration comes from a single YAML file named by $TRACEDECK_CONFIG
or --config. With neither set, built-in defaults apply (endpoint
http://127.0.0.1:8632/bicp, cache under the user cache directory).

Usage:
  tracedeck [flags]

Examples:
  # Connect with defaults
  tracedeck

  # Connect to a remote backend with logging
  tracedeck --endpoint https://traces.example.com/bicp --log-output /tmp/tracedeck.log

Keys:
  j/k move · l/→ expand day · h/← collapse · / filter · r refresh
  x clear live · c connections · Tab detail pane · q quit

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
