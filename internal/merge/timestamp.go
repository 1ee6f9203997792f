package merge

import (
	"encoding/json"
	"math"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Representation is the encoding of a sequence's target values. It is
// detected once from the first record and applied to every record.
type Representation int

const (
	RepTime Representation = iota
	RepMillis
	RepSeconds
	RepCalendarDate
	RepDateTime
)

func (r Representation) String() string {
	switch r {
	case RepTime:
		return "time"
	case RepMillis:
		return "epoch_millis"
	case RepSeconds:
		return "epoch_seconds"
	case RepCalendarDate:
		return "calendar_date"
	case RepDateTime:
		return "date_time"
	}
	return "unknown"
}

// secondsThreshold separates second epochs from millisecond epochs by magnitude.
const secondsThreshold = 1e11

var (
	dateTimeRe      = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[Tt ](\d{2}:\d{2}:\d{2}(?:\.\d+)?)([Zz]|[+-]\d{2}:\d{2})?$`)
	calendarDashRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	calendarSlashRe = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`)
)

// normalizers holds one conversion per representation. Each reports false
// when the value does not belong to that representation.
var normalizers = [...]func(v any, loc *time.Location) (int64, bool){
	RepTime:         timeMillis,
	RepMillis:       epochMillis,
	RepSeconds:      epochSeconds,
	RepCalendarDate: calendarMillis,
	RepDateTime:     dateTimeMillis,
}

// DetectRepresentation classifies a single target value.
func DetectRepresentation(v any) (Representation, bool) {
	switch t := v.(type) {
	case time.Time:
		return RepTime, true
	case *time.Time:
		return RepTime, t != nil
	case string:
		switch {
		case dateTimeRe.MatchString(t):
			return RepDateTime, true
		case calendarDashRe.MatchString(t), calendarSlashRe.MatchString(t):
			return RepCalendarDate, true
		}
		return 0, false
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	if math.Abs(n.float()) < secondsThreshold {
		return RepSeconds, true
	}
	return RepMillis, true
}

// normalize converts the target field of every record to epoch milliseconds
// and checks that the result is strictly ascending.
func normalize(seq Sequence, target string, loc *time.Location) ([]int64, Representation, error) {
	rep, ok := DetectRepresentation(seq.Records[0][target])
	if !ok {
		return nil, 0, newError(ErrDateFormat, seq.Name, 0, "unsupported %T value %v", seq.Records[0][target], seq.Records[0][target])
	}
	conv := normalizers[rep]

	epochs := make([]int64, len(seq.Records))
	for i, rec := range seq.Records {
		v, present := rec[target]
		if !present {
			return nil, rep, newError(ErrTargetFieldMissing, seq.Name, i, "no %q field", target)
		}
		ms, ok := conv(v, loc)
		if !ok {
			return nil, rep, newError(ErrDateFormat, seq.Name, i, "%T value %v is not a %s", v, v, rep)
		}
		if i > 0 && ms <= epochs[i-1] {
			return nil, rep, newError(ErrOrdering, seq.Name, i, "epoch %d does not follow %d", ms, epochs[i-1])
		}
		epochs[i] = ms
	}
	return epochs, rep, nil
}

func timeMillis(v any, _ *time.Location) (int64, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli(), true
	case *time.Time:
		if t == nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}
	return 0, false
}

func epochMillis(v any, _ *time.Location) (int64, bool) {
	n, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	if n.isInt {
		return n.i, true
	}
	return int64(math.Round(n.f)), true
}

func epochSeconds(v any, _ *time.Location) (int64, bool) {
	n, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	if math.Abs(n.float()) >= math.MaxInt64/1000 {
		return 0, false
	}
	if n.isInt {
		return n.i * 1000, true
	}
	return int64(math.Round(n.f * 1000)), true
}

func calendarMillis(v any, loc *time.Location) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	layout := "2006-01-02"
	switch {
	case calendarDashRe.MatchString(s):
	case calendarSlashRe.MatchString(s):
		layout = "2006/01/02"
	default:
		return 0, false
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

func dateTimeMillis(v any, loc *time.Location) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	m := dateTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	value := m[1] + "T" + m[2]

	var (
		t   time.Time
		err error
	)
	switch zone := m[3]; zone {
	case "":
		t, err = time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	case "Z", "z":
		t, err = time.Parse(time.RFC3339, value+"Z")
	default:
		t, err = time.Parse(time.RFC3339, value+zone)
	}
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func asNumber(v any) (number, bool) {
	switch t := v.(type) {
	case int:
		return number{i: int64(t), isInt: true}, true
	case int8:
		return number{i: int64(t), isInt: true}, true
	case int16:
		return number{i: int64(t), isInt: true}, true
	case int32:
		return number{i: int64(t), isInt: true}, true
	case int64:
		return number{i: t, isInt: true}, true
	case uint:
		return number{i: int64(t), isInt: true}, true
	case uint8:
		return number{i: int64(t), isInt: true}, true
	case uint16:
		return number{i: int64(t), isInt: true}, true
	case uint32:
		return number{i: int64(t), isInt: true}, true
	case uint64:
		if t > math.MaxInt64 {
			return number{}, false
		}
		return number{i: int64(t), isInt: true}, true
	case float32:
		return floatNumber(float64(t))
	case float64:
		return floatNumber(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return number{i: i, isInt: true}, true
		}
		f, err := t.Float64()
		if err != nil {
			return number{}, false
		}
		return floatNumber(f)
	case decimal.Decimal:
		if t.IsInteger() && t.BigInt().IsInt64() {
			return number{i: t.IntPart(), isInt: true}, true
		}
		return floatNumber(t.InexactFloat64())
	}
	return number{}, false
}

func floatNumber(f float64) (number, bool) {
	// int64 cannot hold |f| >= 2^63; the conversion would saturate.
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 1<<63 {
		return number{}, false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return number{i: int64(f), isInt: true}, true
	}
	return number{f: f}, true
}
