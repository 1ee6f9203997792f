package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/timeweave/internal/cache"
	"github.com/MikeSquared-Agency/timeweave/internal/hermes"
	"github.com/MikeSquared-Agency/timeweave/internal/loader"
	"github.com/MikeSquared-Agency/timeweave/internal/merge"
	"github.com/MikeSquared-Agency/timeweave/internal/metrics"
	"github.com/MikeSquared-Agency/timeweave/internal/sink"
	"github.com/MikeSquared-Agency/timeweave/internal/store"
)

// Request sources.
const (
	SourceAPI   = "api"
	SourceNATS  = "nats"
	SourceBatch = "batch"
	SourceCLI   = "cli"
)

// RunStore persists run summaries and rows.
type RunStore interface {
	WriteRun(ctx context.Context, r store.Run) error
	WriteRows(ctx context.Context, runID uuid.UUID, rows []merge.Row) (int64, error)
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs merges and fans the outcome out to the configured
// collaborators. Any collaborator except the logger may be left nil.
type Processor struct {
	defaults merge.Options
	cache    *cache.Cache
	metrics  metrics.Collector
	store    RunStore
	sink     sink.Sink
	hermes   Publisher
	logger   *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

func WithCache(c *cache.Cache) Option { return func(p *Processor) { p.cache = c } }
func WithMetrics(m metrics.Collector) Option { return func(p *Processor) { p.metrics = m } }
func WithStore(s RunStore) Option { return func(p *Processor) { p.store = s } }
func WithSink(s sink.Sink) Option { return func(p *Processor) { p.sink = s } }
func WithPublisher(pub Publisher) Option { return func(p *Processor) { p.hermes = pub } }

func New(defaults merge.Options, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		defaults: defaults,
		cache:    cache.New(0),
		metrics:  metrics.Nop{},
		sink:     sink.Nop{},
		logger:   logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Defaults returns the options applied when a request overrides nothing.
func (p *Processor) Defaults() merge.Options {
	return p.defaults
}

// Process merges req. Rejected input is reported through the returned
// error, which wraps a merge error kind; the response still carries the run
// ID and the error body. Persistence, sink and publish failures are logged
// and do not fail the call.
func (p *Processor) Process(ctx context.Context, source string, req Request) (*Response, error) {
	runID := uuid.New()
	resp := &Response{RunID: runID.String(), Rows: []merge.Row{}}
	start := time.Now()

	opts, err := req.Options.resolve(p.defaults)
	if err != nil {
		return p.fail(ctx, source, runID, req, resp, err, start)
	}

	seqs := []merge.Sequence(req.Sequences)
	key, keyed := p.cacheKey(req.Sequences, opts)

	var res *merge.Result
	if keyed {
		if cached, ok := p.cache.Get(key); ok {
			res = cached
			resp.Cached = true
			p.metrics.IncrementCacheHit()
		}
	}
	if res == nil {
		res, err = merge.Run(seqs, opts)
		if err != nil {
			return p.fail(ctx, source, runID, req, resp, err, start)
		}
		if keyed {
			p.cache.Put(key, res)
		}
	}

	elapsed := time.Since(start)
	p.metrics.RecordMerge(source, "ok", elapsed)
	p.metrics.RecordRows(len(res.Rows), res.Dropped)

	resp.Base = res.Base
	resp.Intervals = intervalMap(res.Intervals)
	resp.Rows = res.Rows
	resp.Dropped = res.Dropped

	p.logger.Info("merge completed",
		"run_id", resp.RunID,
		"source", source,
		"base", res.Base,
		"rows", len(res.Rows),
		"dropped", res.Dropped,
		"cached", resp.Cached,
		"elapsed", elapsed,
	)

	run := store.Run{
		ID:           runID,
		Source:       source,
		Status:       store.StatusSucceeded,
		Base:         res.Base,
		Sequences:    names(seqs),
		Intervals:    resp.Intervals,
		InputRecords: countRecords(seqs),
		OutputRows:   len(res.Rows),
		Dropped:      res.Dropped,
	}
	if p.store != nil {
		if err := p.store.WriteRun(ctx, run); err != nil {
			p.logger.Error("failed to persist run", "run_id", resp.RunID, "error", err)
		} else if _, err := p.store.WriteRows(ctx, runID, res.Rows); err != nil {
			p.logger.Error("failed to persist rows", "run_id", resp.RunID, "error", err)
		}
	}
	if err := p.sink.Send(ctx, resp.RunID, res.Rows); err != nil {
		p.logger.Error("failed to forward rows", "run_id", resp.RunID, "error", err)
	}
	p.publish(run)

	return resp, nil
}

func (p *Processor) fail(ctx context.Context, source string, runID uuid.UUID, req Request, resp *Response, err error, start time.Time) (*Response, error) {
	kind := merge.KindOf(err)
	p.metrics.RecordMerge(source, kind, time.Since(start))
	p.logger.Warn("merge rejected", "run_id", resp.RunID, "source", source, "kind", kind, "error", err)

	resp.Error = errorBody(err)
	seqs := []merge.Sequence(req.Sequences)
	run := store.Run{
		ID:           runID,
		Source:       source,
		Status:       store.StatusFailed,
		ErrorKind:    kind,
		ErrorMessage: err.Error(),
		Sequences:    names(seqs),
		InputRecords: countRecords(seqs),
	}
	if p.store != nil {
		if werr := p.store.WriteRun(ctx, run); werr != nil {
			p.logger.Error("failed to persist run", "run_id", resp.RunID, "error", werr)
		}
	}
	p.publish(run)
	return resp, err
}

func (p *Processor) publish(run store.Run) {
	if p.hermes == nil {
		return
	}
	evt := hermes.CompletedEvent{
		RunID:      run.ID.String(),
		Source:     run.Source,
		Status:     run.Status,
		ErrorKind:  run.ErrorKind,
		Base:       run.Base,
		Intervals:  run.Intervals,
		OutputRows: run.OutputRows,
		Dropped:    run.Dropped,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.hermes.Publish(hermes.SubjectMergeCompleted, evt); err != nil {
		p.logger.Warn("failed to publish completed event", "run_id", evt.RunID, "error", err)
	}
}

func (p *Processor) cacheKey(seqs loader.Sequences, opts merge.Options) (uint64, bool) {
	if !p.cache.Enabled() {
		return 0, false
	}
	body, err := json.Marshal(seqs)
	if err != nil {
		return 0, false
	}
	return cache.Key(body, opts), true
}

// HandleMergeRequest is the NATS handler for timeweave.merge.request. It
// always replies with an encoded Response.
func (p *Processor) HandleMergeRequest(data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Warn("failed to parse merge request", "error", err)
		shapeErr := &merge.Error{Kind: merge.ErrInputShape, Index: -1, Detail: err.Error()}
		return encode(&Response{Rows: []merge.Row{}, Error: errorBody(shapeErr)})
	}

	resp, err := p.Process(context.Background(), SourceNATS, req)
	var mergeErr *merge.Error
	if err != nil && !errors.As(err, &mergeErr) {
		p.logger.Error("merge request failed", "error", err)
	}
	return encode(resp)
}

func encode(resp *Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		return []byte(fmt.Sprintf(`{"rows":[],"error":{"kind":"internal","message":%q}}`, err.Error()))
	}
	return out
}

func intervalMap(intervals []merge.Interval) map[string]int64 {
	out := make(map[string]int64, len(intervals))
	for _, iv := range intervals {
		out[iv.Sequence] = iv.Millis
	}
	return out
}

func names(seqs []merge.Sequence) []string {
	out := make([]string, len(seqs))
	for i, s := range seqs {
		out[i] = s.Name
	}
	return out
}

func countRecords(seqs []merge.Sequence) int {
	n := 0
	for _, s := range seqs {
		n += len(s.Records)
	}
	return n
}
