package merge

import "time"

const (
	DefaultTarget                 = "date"
	DefaultChunkSize              = 1000
	DefaultMaxFrequencySampleSize = 10
)

// Record is one flat field -> value mapping read from an input sequence.
type Record map[string]any

// Sequence is a named list of records sorted strictly ascending by the target field.
type Sequence struct {
	Name    string
	Records []Record
}

// Key identifies a merged field by its source sequence and field name.
type Key struct {
	Sequence string
	Field    string
}

// String renders the key in the flat "<sequence>_<field>" output format.
// A key with an empty Sequence renders as the bare field name.
func (k Key) String() string {
	if k.Sequence == "" {
		return k.Field
	}
	return k.Sequence + "_" + k.Field
}

// Row is a merged record as exposed to callers.
type Row map[string]any

// Completeness decides whether a candidate merged record is emitted.
type Completeness int

const (
	// CompletenessStrict emits only records that received every field of
	// every sequence.
	CompletenessStrict Completeness = iota
	// CompletenessAny emits a record as soon as one secondary sequence
	// matched (or unconditionally when there are no secondaries).
	CompletenessAny
)

func (c Completeness) String() string {
	if c == CompletenessAny {
		return "any"
	}
	return "strict"
}

// ParseCompleteness maps "strict" and "any" to their policy. Unknown values
// report false.
func ParseCompleteness(s string) (Completeness, bool) {
	switch s {
	case "", "strict":
		return CompletenessStrict, true
	case "any":
		return CompletenessAny, true
	}
	return CompletenessStrict, false
}

// Options configures a merge run. The zero value is usable.
type Options struct {
	Target                 string
	ChunkSize              int
	MaxFrequencySampleSize int
	Completeness           Completeness
	// BareBaseKeys emits base fields under their bare field names instead
	// of "<base>_<field>". Secondary fields are always prefixed. Run fails
	// with ErrInputShape when two fields flatten to the same key.
	BareBaseKeys bool
	// Location resolves date strings that carry no offset.
	Location *time.Location
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Target:                 DefaultTarget,
		ChunkSize:              DefaultChunkSize,
		MaxFrequencySampleSize: DefaultMaxFrequencySampleSize,
		Completeness:           CompletenessStrict,
		Location:               time.Local,
	}
}

func (o Options) withDefaults() Options {
	if o.Target == "" {
		o.Target = DefaultTarget
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxFrequencySampleSize == 0 {
		o.MaxFrequencySampleSize = DefaultMaxFrequencySampleSize
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Result is the outcome of Run.
type Result struct {
	Rows      []Row
	Base      string
	Intervals []Interval
	// Dropped counts base records that produced no row.
	Dropped int
}

// Interval is the inferred sampling interval of one sequence, in milliseconds.
type Interval struct {
	Sequence string
	Millis   int64
}
