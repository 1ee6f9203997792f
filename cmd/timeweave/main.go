package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MikeSquared-Agency/timeweave/internal/config"
)

const usage = `usage: timeweave <command> [flags]

commands:
  serve                      run the HTTP API and NATS responder
  merge [flags] name=path... merge sequence files and print the rows as JSON
  batch -manifest file       run the jobs of a YAML manifest
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		setupLogging(cfg.LogLevel, os.Stdout)
		err = runServe(cfg)
	case "merge":
		// stdout carries the rows.
		setupLogging(cfg.LogLevel, os.Stderr)
		err = runMerge(cfg, args)
	case "batch":
		setupLogging(cfg.LogLevel, os.Stdout)
		err = runBatch(cfg, args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("timeweave failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
