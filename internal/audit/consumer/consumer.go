// Package consumer reads audit entries back from the Kafka topic the relay
// publishes to.
//
// The relay delivers at least once, so the consumer drops records whose
// audit_entry_id it has already handed out.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"digitalbank/internal/audit"
	id "digitalbank/pkg/domain"
)

const (
	entryIDHeader  = "audit_entry_id"
	defaultSeenCap = 10_000
)

// Fetcher is the subset of *kgo.Client the consumer needs.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Handler receives each decoded entry once.
type Handler interface {
	Handle(ctx context.Context, e *audit.Entry) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e *audit.Entry) error

func (f HandlerFunc) Handle(ctx context.Context, e *audit.Entry) error {
	return f(ctx, e)
}

// ErrStop ends Run without an error when returned by a Handler.
var ErrStop = errors.New("stop consuming")

type Consumer struct {
	client  Fetcher
	logger  *slog.Logger
	seen    map[id.AuditEntryID]struct{}
	seenCap int
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

// WithSeenCapacity bounds the duplicate filter. Once full it starts over.
func WithSeenCapacity(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.seenCap = n
		}
	}
}

func New(client Fetcher, opts ...Option) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	c := &Consumer{
		client:  client,
		logger:  slog.Default(),
		seenCap: defaultSeenCap,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.seen = make(map[id.AuditEntryID]struct{}, c.seenCap)
	return c, nil
}

// Run polls until ctx is cancelled or h returns an error. ErrStop ends the
// loop cleanly. Records that fail to decode are logged and skipped.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) || errors.Is(fe.Err, context.DeadlineExceeded) {
				return nil
			}
			c.logger.WarnContext(ctx, "audit fetch failed",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			entry, err := Decode(rec)
			if err != nil {
				c.logger.WarnContext(ctx, "skipping undecodable audit record",
					"topic", rec.Topic,
					"partition", rec.Partition,
					"offset", rec.Offset,
					"error", err,
				)
				continue
			}
			if c.duplicate(entry.ID) {
				continue
			}
			if err := h.Handle(ctx, entry); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Consumer) duplicate(entryID id.AuditEntryID) bool {
	if _, ok := c.seen[entryID]; ok {
		return true
	}
	if len(c.seen) >= c.seenCap {
		clear(c.seen)
	}
	c.seen[entryID] = struct{}{}
	return false
}

// Decode parses a relayed record. The entry id header, when present, must
// match the payload.
func Decode(rec *kgo.Record) (*audit.Entry, error) {
	var e audit.Entry
	if err := json.Unmarshal(rec.Value, &e); err != nil {
		return nil, fmt.Errorf("decode audit entry: %w", err)
	}
	if e.ID.IsNil() {
		return nil, errors.New("decode audit entry: missing id")
	}
	for _, hdr := range rec.Headers {
		if hdr.Key == entryIDHeader && string(hdr.Value) != e.ID.String() {
			return nil, fmt.Errorf("decode audit entry: header id %s does not match payload id %s", hdr.Value, e.ID)
		}
	}
	return &e, nil
}
