// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// patchlined is the routing daemon simulator. It serves the control
// protocol on a Unix socket, backed by a seeded in-memory object
// graph, for developing and testing patchline without a real daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/patchline-project/patchline/daemon"
	"github.com/patchline-project/patchline/lib/config"
	"github.com/patchline-project/patchline/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var socketPath string
	var seedPath string
	var sameUser bool
	var verbose bool

	flagSet := pflag.NewFlagSet("patchlined", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "socket path to listen on (default: the patchline default socket)")
	flagSet.StringVar(&seedPath, "seed", "", "YAML seed topology (default: built-in demo graph)")
	flagSet.BoolVar(&sameUser, "same-user", false, "reject clients running as a different uid")
	flagSet.BoolVar(&verbose, "verbose", false, "log at debug level")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("patchlined")
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

	if socketPath == "" {
		socketPath = config.Default().Socket
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	seed := daemon.DefaultSeed()
	if seedPath != "" {
		loaded, err := daemon.LoadSeed(seedPath)
		if err != nil {
			return err
		}
		seed = loaded
	}

	d, err := daemon.New(daemon.Options{
		SocketPath:      socketPath,
		Seed:            seed,
		Logger:          logger,
		RequireSameUser: sameUser,
	})
	if err != nil {
		return err
	}

	// Serve until interrupted; Stop removes the socket file.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	received := <-signals
	logger.Info("shutting down", "signal", received)
	d.Stop()
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Patchline daemon simulator: serves the control protocol over a
Unix socket against an in-memory object graph.

Usage:
  patchlined [flags]

Examples:
  # Serve the built-in demo graph on the default socket
  patchlined

  # Serve a custom topology on a development socket
  patchlined --socket /tmp/patchlined.sock --seed topology.yaml

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
