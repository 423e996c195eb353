// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// patchline is the interactive terminal patchbay. It connects to the
// routing daemon's control socket, mirrors the object registry, and
// lets the operator create and destroy links between ports by name.
package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/patchline-project/patchline/bridge"
	"github.com/patchline-project/patchline/lib/config"
	"github.com/patchline-project/patchline/lib/version"
	"github.com/patchline-project/patchline/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var socketPath string
	var configPath string
	var logOutput string
	var verbose bool

	flagSet := pflag.NewFlagSet("patchline", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "daemon control socket (overrides config)")
	flagSet.StringVar(&configPath, "config", "", "config file path (default: $PATCHLINE_CONFIG)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolVar(&verbose, "verbose", false, "log at debug level")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the daemon binary.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("patchline")
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

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Socket = socketPath
	}
	if logOutput != "" {
		cfg.Log.Output = logOutput
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; patchline is interactive only")
	}

	logger, cleanup, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer cleanup()

	b, err := bridge.New(bridge.Options{
		SocketPath:         cfg.Socket,
		Application:        "patchline",
		Logger:             logger,
		CommandBuffer:      cfg.CommandBuffer,
		NotificationBuffer: cfg.NotificationBuffer,
		PollInterval:       cfg.PollInterval.Std(),
	})
	if err != nil {
		return err
	}
	// The TUI's quit path drains the bridge itself; this covers
	// abnormal program exits.
	defer func() { _ = b.Quit() }()

	program := tea.NewProgram(tui.New(b), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// buildLogger routes log records to the configured file. Without one,
// records are discarded: stderr belongs to the terminal renderer, and
// writing there would corrupt the alt-screen display.
func buildLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Output == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	file, err := os.Create(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { file.Close() }, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Patchline: interactive terminal patchbay for the routing daemon.

Connects to the daemon's control socket, shows the live object
registry, and creates or destroys links between the selected output
and input ports.

Usage:
  patchline [flags]

Examples:
  # Connect to the default socket
  patchline

  # Connect to a development daemon with debug logging
  patchline --socket /tmp/patchlined.sock --log-output /tmp/patchline.log --verbose

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
