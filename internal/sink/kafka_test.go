package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

type fakeWriter struct {
	batches [][]kafka.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func rows(n int) []merge.Row {
	out := make([]merge.Row, n)
	for i := range out {
		out[i] = merge.Row{"h_date": i, "d_close": 199}
	}
	return out
}

func TestKafkaSink_BatchesRows(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSink{writer: w, batchSize: 2}

	require.NoError(t, k.Send(context.Background(), "run-1", rows(5)))
	require.Len(t, w.batches, 3)
	require.Len(t, w.batches[2], 1)

	last := w.batches[2][0]
	require.Equal(t, "run-1", string(last.Key))
	require.Equal(t, "4", string(last.Headers[1].Value))

	var row map[string]any
	require.NoError(t, json.Unmarshal(last.Value, &row))
	require.EqualValues(t, 4, row["h_date"])

	require.NoError(t, k.Close())
	require.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	k := &KafkaSink{writer: w, batchSize: 10}

	err := k.Send(context.Background(), "run-1", rows(3))
	require.ErrorContains(t, err, "broker down")
	require.ErrorContains(t, err, "rows 0-2")
}

func TestKafkaSink_NoRows(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSink{writer: w, batchSize: 10}

	require.NoError(t, k.Send(context.Background(), "run-1", nil))
	require.Empty(t, w.batches)
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	require.NoError(t, s.Send(context.Background(), "x", rows(1)))
	require.NoError(t, s.Close())
}
