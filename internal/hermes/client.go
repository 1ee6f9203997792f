package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectMergeRequest receives merge requests and replies with the rows.
	SubjectMergeRequest = "timeweave.merge.request"
	// SubjectMergeCompleted announces every finished merge run.
	SubjectMergeCompleted = "timeweave.merge.completed"

	// serveQueue spreads requests across service replicas.
	serveQueue = "timeweave"
)

// CompletedEvent is published on SubjectMergeCompleted.
type CompletedEvent struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	Status     string           `json:"status"`
	ErrorKind  string           `json:"error_kind,omitempty"`
	Base       string           `json:"base,omitempty"`
	Intervals  map[string]int64 `json:"intervals,omitempty"`
	OutputRows int              `json:"output_rows"`
	Dropped    int              `json:"dropped"`
	Timestamp  string           `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("timeweave"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Serve answers requests on subject with the bytes returned by handler.
// Replicas share the work through a queue group.
func (c *Client) Serve(subject string, handler func(data []byte) []byte) error {
	sub, err := c.conn.QueueSubscribe(subject, serveQueue, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Warn("nats respond failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("serve %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("serving", "subject", subject, "queue", serveQueue)
	return nil
}

// Request sends payload to subject and decodes the reply into out.
func (c *Client) Request(ctx context.Context, subject string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
