// Package batch runs manifests of merge jobs against files on disk.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/timeweave/internal/loader"
	"github.com/MikeSquared-Agency/timeweave/internal/merge"
	"github.com/MikeSquared-Agency/timeweave/internal/processor"
)

// Config holds the batch command configuration.
type Config struct {
	ManifestPath string
	StatePath    string // overrides the manifest's state_file
	DryRun       bool   // merge but write neither output nor state
	Force        bool   // re-run jobs whose fingerprint is unchanged
}

// Merger runs one merge request.
type Merger interface {
	Process(ctx context.Context, source string, req processor.Request) (*processor.Response, error)
}

// Notifier posts batch summaries, e.g. to Slack.
type Notifier interface {
	PostMessage(ctx context.Context, text string) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Runner orchestrates a batch run.
type Runner struct {
	cfg      Config
	merger   Merger
	notifier Notifier
	logger   *slog.Logger
}

// NewRunner creates a batch runner. notifier may be nil.
func NewRunner(cfg Config, m Merger, n Notifier, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, merger: m, notifier: n, logger: logger}
}

// Run executes every job in the manifest and returns the per-job summaries.
// A failing job is recorded and does not stop the run; cancellation does.
func (r *Runner) Run(ctx context.Context) ([]JobSummary, error) {
	m, err := LoadManifest(r.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	statePath := r.cfg.StatePath
	if statePath == "" {
		statePath = m.StateFile
	}
	if statePath == "" {
		statePath = defaultStatePath
	} else if r.cfg.StatePath == "" {
		statePath = m.resolve(statePath)
	}
	state, err := LoadState(statePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	r.logger.Info("batch starting", "manifest", r.cfg.ManifestPath, "jobs", len(m.Jobs), "dry_run", r.cfg.DryRun)

	var summaries []JobSummary
	for _, job := range m.Jobs {
		select {
		case <-ctx.Done():
			r.logger.Info("batch interrupted, saving state")
			r.save(state)
			r.postSummary(ctx, summaries)
			return summaries, ctx.Err()
		default:
		}

		s := r.runJob(ctx, m, job, state)
		summaries = append(summaries, s)
		r.save(state)
	}

	r.postSummary(ctx, summaries)

	ok, failed, skipped := countStatuses(summaries)
	r.logger.Info("batch complete",
		"jobs", len(summaries),
		"ok", ok,
		"failed", failed,
		"skipped", skipped,
		"dry_run", r.cfg.DryRun,
	)
	return summaries, nil
}

func (r *Runner) runJob(ctx context.Context, m *Manifest, job Job, state *State) JobSummary {
	start := time.Now()
	s := JobSummary{Name: job.Name}

	fp, err := m.fingerprint(job)
	if err != nil {
		return r.failJob(state, s, "load", err, start)
	}
	if !r.cfg.Force && state.IsProcessed(job.Name, fp) {
		r.logger.Info("skipping unchanged job", "job", job.Name, "fingerprint", fp)
		s.Status = StatusSkipped
		return s
	}

	seqs := make([]merge.Sequence, 0, len(job.Inputs))
	for _, in := range job.Inputs {
		seq, err := loader.LoadFile(inputName(in), m.resolve(in.Path))
		if err != nil {
			return r.failJob(state, s, "load", err, start)
		}
		seqs = append(seqs, seq)
	}

	resp, err := r.merger.Process(ctx, processor.SourceBatch, processor.Request{
		Sequences: seqs,
		Options:   m.options(job),
	})
	if err != nil {
		return r.failJob(state, s, merge.KindOf(err), err, start)
	}

	s.RunID = resp.RunID
	s.Base = resp.Base
	s.Rows = len(resp.Rows)
	s.Dropped = resp.Dropped

	if !r.cfg.DryRun {
		out := m.outputPath(job)
		if err := writeJSONL(out, resp.Rows); err != nil {
			return r.failJob(state, s, "output", err, start)
		}
		s.Output = out
		state.RowsWritten += s.Rows
		state.MarkProcessed(job.Name, fp)
	}

	s.Status = StatusOK
	s.Elapsed = time.Since(start)
	r.logger.Info("job processed",
		"job", job.Name,
		"run_id", s.RunID,
		"base", s.Base,
		"rows", s.Rows,
		"dropped", s.Dropped,
		"output", s.Output,
	)
	return s
}

func (r *Runner) failJob(state *State, s JobSummary, kind string, err error, start time.Time) JobSummary {
	r.logger.Error("job failed", "job", s.Name, "kind", kind, "error", err)
	state.AddError(fmt.Sprintf("%s: %v", s.Name, err))
	s.Status = StatusFailed
	s.ErrorKind = kind
	s.Error = err.Error()
	s.Elapsed = time.Since(start)
	return s
}

func (r *Runner) save(state *State) {
	if r.cfg.DryRun {
		return
	}
	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save batch state", "error", err)
	}
}

// postSummary posts the run summary and one thread reply per failed job. If
// no notifier is configured it logs the summary instead.
func (r *Runner) postSummary(ctx context.Context, summaries []JobSummary) {
	if len(summaries) == 0 {
		return
	}

	text := FormatSummary(summaries)
	if r.notifier == nil {
		r.logger.Info("batch summary (no Slack configured)", "summary", text)
		return
	}

	ts, err := r.notifier.PostMessage(ctx, text)
	if err != nil {
		r.logger.Warn("failed to post batch summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
		return
	}
	for _, s := range summaries {
		if s.Status != StatusFailed {
			continue
		}
		msg := fmt.Sprintf("*%s* failed (%s): %s", s.Name, s.ErrorKind, s.Error)
		if err := r.notifier.PostThread(ctx, ts, msg); err != nil {
			r.logger.Warn("failed to post job failure to Slack", "job", s.Name, "error", err)
		}
	}
}

// writeJSONL writes one row per line to a temporary file and renames it into
// place, so a crash never leaves a truncated output behind.
func writeJSONL(path string, rows []merge.Row) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

func inputName(in Input) string {
	if in.Name != "" {
		return in.Name
	}
	return strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path))
}
