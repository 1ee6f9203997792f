package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// messageWriter is the part of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one message per merged row, keyed by run ID so a run's
// rows land on one partition in order.
type KafkaSink struct {
	writer    messageWriter
	batchSize int
}

// NewKafka creates a sink for a comma-separated broker list.
func NewKafka(brokers, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		batchSize: 500,
	}
}

func (k *KafkaSink) Send(ctx context.Context, runID string, rows []merge.Row) error {
	for start := 0; start < len(rows); start += k.batchSize {
		end := min(start+k.batchSize, len(rows))
		msgs, err := buildMessages(runID, start, rows[start:end])
		if err != nil {
			return err
		}
		if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("kafka write rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func buildMessages(runID string, offset int, rows []merge.Row) ([]kafka.Message, error) {
	now := time.Now()
	msgs := make([]kafka.Message, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("marshal row %d: %w", offset+i, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(runID),
			Value: data,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
				{Key: "row_index", Value: []byte(strconv.Itoa(offset + i))},
			},
		}
	}
	return msgs, nil
}
