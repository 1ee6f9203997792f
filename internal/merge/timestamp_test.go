package merge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDetectRepresentation(t *testing.T) {
	now := time.Date(2025, 4, 8, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  Representation
		ok    bool
	}{
		{"time", now, RepTime, true},
		{"time pointer", &now, RepTime, true},
		{"nil time pointer", (*time.Time)(nil), 0, false},
		{"millis int64", now.UnixMilli(), RepMillis, true},
		{"seconds int", int(now.Unix()), RepSeconds, true},
		{"seconds float", 1744099200.5, RepSeconds, true},
		{"millis json number", json.Number("1744099200000"), RepMillis, true},
		{"seconds decimal", decimal.NewFromInt(1744099200), RepSeconds, true},
		{"negative seconds", -86400, RepSeconds, true},
		{"utc", "2025-04-08T08:00:00Z", RepDateTime, true},
		{"utc lower z", "2025-04-08 08:00:00.250z", RepDateTime, true},
		{"offset", "2025-04-08T08:00:00+02:00", RepDateTime, true},
		{"local", "2025-04-08 08:00:00", RepDateTime, true},
		{"dash date", "2025-04-08", RepCalendarDate, true},
		{"slash date", "2025/04/08", RepCalendarDate, true},
		{"us date", "04/08/2025", 0, false},
		{"no seconds", "2025-04-08 08:00", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectRepresentation(tt.value)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalize_Representations(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	want := time.Date(2025, 4, 8, 12, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name   string
		values []any
	}{
		{"time", []any{time.Date(2025, 4, 8, 12, 0, 0, 0, time.UTC), time.Date(2025, 4, 8, 13, 0, 0, 0, time.UTC)}},
		{"millis", []any{want, want + 3_600_000}},
		{"seconds", []any{want / 1000, want/1000 + 3600}},
		{"utc", []any{"2025-04-08T12:00:00Z", "2025-04-08T13:00:00Z"}},
		{"offset", []any{"2025-04-08T14:00:00+02:00", "2025-04-08T15:00:00+02:00"}},
		{"local", []any{"2025-04-08 08:00:00", "2025-04-08 09:00:00"}},
		{"mixed datetime forms", []any{"2025-04-08 08:00:00", "2025-04-08T13:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := Sequence{Name: tt.name}
			for _, v := range tt.values {
				seq.Records = append(seq.Records, Record{"date": v})
			}
			epochs, _, err := normalize(seq, "date", ny)
			require.NoError(t, err)
			require.Equal(t, []int64{want, want + 3_600_000}, epochs)
		})
	}
}

func TestNormalize_CalendarDateIsLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	seq := Sequence{Name: "d", Records: []Record{{"date": "2025/04/07"}, {"date": "2025/04/08"}}}

	epochs, rep, err := normalize(seq, "date", loc)
	require.NoError(t, err)
	require.Equal(t, RepCalendarDate, rep)
	require.Equal(t, time.Date(2025, 4, 7, 0, 0, 0, 0, loc).UnixMilli(), epochs[0])
	require.Equal(t, int64(86_400_000), epochs[1]-epochs[0])
}

func TestNormalize_FractionalSeconds(t *testing.T) {
	seq := Sequence{Name: "f", Records: []Record{{"date": 1.25}, {"date": 2.5}}}

	epochs, rep, err := normalize(seq, "date", time.UTC)
	require.NoError(t, err)
	require.Equal(t, RepSeconds, rep)
	require.Equal(t, []int64{1250, 2500}, epochs)
}

func TestNormalize_InvalidCalendarValue(t *testing.T) {
	seq := Sequence{Name: "d", Records: []Record{{"date": "2025-04-07"}, {"date": "2025-13-01"}}}

	_, _, err := normalize(seq, "date", time.UTC)
	require.ErrorIs(t, err, ErrDateFormat)
}

func TestNormalize_Ties(t *testing.T) {
	seq := Sequence{Name: "t", Records: []Record{{"date": "2025-04-07"}, {"date": "2025-04-07"}}}

	_, _, err := normalize(seq, "date", time.UTC)
	require.ErrorIs(t, err, ErrOrdering)
}

func TestNormalize_NumbersOutsideInt64(t *testing.T) {
	huge, err := decimal.NewFromString("100000000000000000000")
	require.NoError(t, err)

	for name, seq := range map[string]Sequence{
		"float":   {Name: "f", Records: []Record{{"date": 1e20}, {"date": 2e20}}},
		"decimal": {Name: "d", Records: []Record{{"date": huge}, {"date": huge.Add(decimal.NewFromInt(1))}}},
		"json":    {Name: "j", Records: []Record{{"date": json.Number("1e20")}, {"date": json.Number("2e20")}}},
	} {
		_, _, err := normalize(seq, "date", time.UTC)
		require.ErrorIs(t, err, ErrDateFormat, name)
	}
}

func TestNormalize_SecondsOverflow(t *testing.T) {
	seq := Sequence{Name: "s", Records: []Record{{"date": int64(1_700_000_000)}, {"date": int64(1e17)}}}

	_, _, err := normalize(seq, "date", time.UTC)
	require.ErrorIs(t, err, ErrDateFormat)
}
