package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MikeSquared-Agency/timeweave/internal/config"
	"github.com/MikeSquared-Agency/timeweave/internal/hermes"
	"github.com/MikeSquared-Agency/timeweave/internal/loader"
	"github.com/MikeSquared-Agency/timeweave/internal/merge"
	"github.com/MikeSquared-Agency/timeweave/internal/processor"
)

func runMerge(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	var (
		target       = fs.String("target", "", "timestamp field name")
		chunkSize    = fs.Int("chunk-size", 0, "records per chunk")
		sampleSize   = fs.Int("sample-size", 0, "records sampled to infer an interval")
		completeness = fs.String("completeness", "", "strict or any")
		bareBaseKeys = fs.Bool("bare-base-keys", cfg.BareBaseKeys, "emit base fields without a prefix")
		timeZone     = fs.String("tz", "", "IANA zone for dates without an offset")
		output       = fs.String("o", "", "write rows to this file instead of stdout")
		lines        = fs.Bool("jsonl", false, "write one row per line")
		remote       = fs.Bool("remote", false, "send the request to a running service over NATS")
		timeout      = fs.Duration("timeout", 30*time.Second, "remote request timeout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("merge needs at least one name=path argument")
	}

	seqs, err := loader.LoadArgs(fs.Args())
	if err != nil {
		return err
	}
	req := processor.Request{
		Sequences: seqs,
		Options: &processor.RequestOptions{
			Target:                 *target,
			ChunkSize:              *chunkSize,
			MaxFrequencySampleSize: *sampleSize,
			Completeness:           *completeness,
			BareBaseKeys:           bareBaseKeys,
			TimeZone:               *timeZone,
		},
	}

	var resp *processor.Response
	if *remote {
		resp, err = mergeRemote(cfg, req, *timeout)
	} else {
		resp, err = processor.New(cfg.MergeOptions(), slog.Default()).Process(context.Background(), processor.SourceCLI, req)
	}
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
	}

	slog.Debug("merged", "base", resp.Base, "rows", len(resp.Rows), "dropped", resp.Dropped)

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeRows(w, resp.Rows, *lines)
}

func mergeRemote(cfg config.Config, req processor.Request, timeout time.Duration) (*processor.Response, error) {
	if cfg.NatsURL == "" {
		return nil, errors.New("-remote needs NATS_URL")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var resp processor.Response
	if err := client.Request(ctx, hermes.SubjectMergeRequest, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func writeRows(w io.Writer, rows []merge.Row, lines bool) error {
	enc := json.NewEncoder(w)
	if lines {
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []merge.Row{}
	}
	return enc.Encode(rows)
}
