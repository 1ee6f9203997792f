// Package merge aligns time-ordered sequences sampled at different intervals
// into one sequence of composite rows, one candidate per record of the
// finest-grained ("base") sequence.
//
// Every secondary record covers the window [epoch, epoch+interval-1], where
// interval is the modal spacing of its sequence. A base record at epoch t picks
// up the fields of every secondary record whose window contains t. Output keys
// are "<sequence>_<field>".
//
// A call is synchronous and owns all of its state, so concurrent calls are
// safe as long as they do not share input records that are mutated meanwhile.
package merge

import (
	"maps"
	"slices"
)

// Merge joins seqs and returns the merged rows in base order.
func Merge(seqs []Sequence, opts Options) ([]Row, error) {
	res, err := Run(seqs, opts)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Run is Merge with the inferred intervals, the chosen base and the number of
// dropped base records reported alongside the rows. It fails without partial
// output on the first invalid input.
func Run(seqs []Sequence, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := validate(seqs, opts); err != nil {
		return nil, err
	}

	epochs := make([][]int64, len(seqs))
	for i, seq := range seqs {
		e, _, err := normalize(seq, opts.Target, opts.Location)
		if err != nil {
			return nil, err
		}
		epochs[i] = e
	}

	intervals := make([]int64, len(seqs))
	for i, seq := range seqs {
		d, err := estimateInterval(seq.Name, epochs[i], opts.MaxFrequencySampleSize)
		if err != nil {
			return nil, err
		}
		intervals[i] = d
	}

	b := selectBase(intervals)
	j := &joiner{
		base: stream{
			name:     seqs[b].Name,
			data:     newChunked(seqs[b].Records, epochs[b], opts.ChunkSize),
			interval: intervals[b],
		},
		basePrefix: seqs[b].Name,
		policy:     opts.Completeness,
	}
	if opts.BareBaseKeys {
		j.basePrefix = ""
	}
	if err := checkKeys(seqs, b, j.basePrefix); err != nil {
		return nil, err
	}
	for i, seq := range seqs {
		j.expected += len(seq.Records[0])
		if i == b {
			continue
		}
		j.secondaries = append(j.secondaries, stream{
			name:     seq.Name,
			data:     newChunked(seq.Records, epochs[i], opts.ChunkSize),
			interval: intervals[i],
		})
	}

	rows, dropped, _ := j.run(make([]Cursor, len(j.secondaries)))

	res := &Result{
		Rows:      rows,
		Base:      seqs[b].Name,
		Intervals: make([]Interval, len(seqs)),
		Dropped:   dropped,
	}
	for i, seq := range seqs {
		res.Intervals[i] = Interval{Sequence: seq.Name, Millis: intervals[i]}
	}
	return res, nil
}

// checkKeys rejects inputs whose first records flatten two different fields
// onto the same output key, e.g. base "a" field "b_c" and sequence "a_b"
// field "c". Such rows could never be complete.
func checkKeys(seqs []Sequence, base int, basePrefix string) error {
	owner := make(map[string]Key)
	for i, seq := range seqs {
		prefix := seq.Name
		if i == base {
			prefix = basePrefix
		}
		for _, f := range slices.Sorted(maps.Keys(seq.Records[0])) {
			k := Key{Sequence: prefix, Field: f}
			name := k.String()
			if prev, dup := owner[name]; dup {
				return newError(ErrInputShape, seq.Name, -1,
					"field %q flattens to %q, already used by field %q of %q", f, name, prev.Field, prev.Sequence)
			}
			owner[name] = Key{Sequence: seq.Name, Field: f}
		}
	}
	return nil
}

func validate(seqs []Sequence, opts Options) error {
	if opts.ChunkSize < 1 {
		return newError(ErrInputShape, "", -1, "chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.MaxFrequencySampleSize < 2 {
		return newError(ErrInputShape, "", -1, "frequency sample size must be at least 2, got %d", opts.MaxFrequencySampleSize)
	}
	if len(seqs) == 0 {
		return newError(ErrInputShape, "", -1, "no sequences")
	}

	seen := make(map[string]struct{}, len(seqs))
	for _, seq := range seqs {
		if seq.Name == "" {
			return newError(ErrInputShape, "", -1, "sequence without a name")
		}
		if _, dup := seen[seq.Name]; dup {
			return newError(ErrInputShape, seq.Name, -1, "duplicate sequence name")
		}
		seen[seq.Name] = struct{}{}

		if len(seq.Records) < 2 {
			return newError(ErrSeriesLength, seq.Name, -1, "need at least 2 records, got %d", len(seq.Records))
		}
		if _, ok := seq.Records[0][opts.Target]; !ok {
			return newError(ErrTargetFieldMissing, seq.Name, 0, "no %q field", opts.Target)
		}
	}
	return nil
}
