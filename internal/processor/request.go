package processor

import (
	"time"

	"github.com/MikeSquared-Agency/timeweave/internal/loader"
	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// Request is the payload accepted over HTTP and NATS.
type Request struct {
	Sequences loader.Sequences `json:"sequences"`
	Options   *RequestOptions  `json:"options,omitempty"`
}

// RequestOptions overrides the service defaults for one call. Zero fields
// keep the default.
type RequestOptions struct {
	Target                 string `json:"target,omitempty" yaml:"target"`
	ChunkSize              int    `json:"chunk_size,omitempty" yaml:"chunk_size"`
	MaxFrequencySampleSize int    `json:"max_frequency_sample_size,omitempty" yaml:"max_frequency_sample_size"`
	Completeness           string `json:"completeness,omitempty" yaml:"completeness"`
	BareBaseKeys           *bool  `json:"bare_base_keys,omitempty" yaml:"bare_base_keys"`
	TimeZone               string `json:"time_zone,omitempty" yaml:"time_zone"`
}

// Response carries either the merged rows or an error.
type Response struct {
	RunID     string           `json:"run_id"`
	Base      string           `json:"base,omitempty"`
	Intervals map[string]int64 `json:"intervals,omitempty"`
	Rows      []merge.Row      `json:"rows"`
	Dropped   int              `json:"dropped"`
	Cached    bool             `json:"cached"`
	Error     *ErrorBody       `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorBody(err error) *ErrorBody {
	return &ErrorBody{Kind: merge.KindOf(err), Message: err.Error()}
}

// resolve applies o on top of defaults.
func (o *RequestOptions) resolve(defaults merge.Options) (merge.Options, error) {
	opts := defaults
	if o == nil {
		return opts, nil
	}
	if o.Target != "" {
		opts.Target = o.Target
	}
	if o.ChunkSize != 0 {
		opts.ChunkSize = o.ChunkSize
	}
	if o.MaxFrequencySampleSize != 0 {
		opts.MaxFrequencySampleSize = o.MaxFrequencySampleSize
	}
	if o.Completeness != "" {
		c, ok := merge.ParseCompleteness(o.Completeness)
		if !ok {
			return opts, &merge.Error{Kind: merge.ErrInputShape, Index: -1, Detail: "unknown completeness " + o.Completeness}
		}
		opts.Completeness = c
	}
	if o.BareBaseKeys != nil {
		opts.BareBaseKeys = *o.BareBaseKeys
	}
	if o.TimeZone != "" {
		loc, err := time.LoadLocation(o.TimeZone)
		if err != nil {
			return opts, &merge.Error{Kind: merge.ErrInputShape, Index: -1, Detail: "unknown time zone " + o.TimeZone}
		}
		opts.Location = loc
	}
	return opts, nil
}
