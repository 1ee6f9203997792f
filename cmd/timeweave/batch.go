package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeSquared-Agency/timeweave/internal/batch"
	"github.com/MikeSquared-Agency/timeweave/internal/config"
	"github.com/MikeSquared-Agency/timeweave/internal/processor"
	"github.com/MikeSquared-Agency/timeweave/internal/slack"
)

func runBatch(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	var bcfg batch.Config
	fs.StringVar(&bcfg.ManifestPath, "manifest", "", "YAML job manifest")
	fs.StringVar(&bcfg.StatePath, "state", "", "state file (overrides the manifest)")
	fs.BoolVar(&bcfg.DryRun, "dry-run", false, "merge without writing output or state")
	fs.BoolVar(&bcfg.Force, "force", false, "re-run unchanged jobs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if bcfg.ManifestPath == "" {
		return errors.New("batch needs -manifest")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Slack summaries are optional.
	var notifier batch.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
	}

	proc := processor.New(cfg.MergeOptions(), slog.Default())
	summaries, err := batch.NewRunner(bcfg, proc, notifier, slog.Default()).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(batch.FormatSummary(summaries))
	if n := countFailed(summaries); n > 0 {
		return fmt.Errorf("%d job(s) failed", n)
	}
	return nil
}

func countFailed(summaries []batch.JobSummary) int {
	n := 0
	for _, s := range summaries {
		if s.Status == batch.StatusFailed {
			n++
		}
	}
	return n
}
