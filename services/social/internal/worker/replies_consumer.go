// Package worker ingests replies published on the message bus by clients
// that cannot hold an HTTP connection open.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/analytics"
	"github.com/example/study-spots/internal/platform/metrics"
	"github.com/example/study-spots/services/social/internal/store"
	"github.com/example/study-spots/services/social/internal/thread"
)

const (
	Subject = "social.reviews.create"
	Durable = "social_reviews"

	seenLimit = 10000
)

// CreateReplyEvent is the bus payload for a new reply.
type CreateReplyEvent struct {
	EventID    string `json:"event_id"`
	LocationID int64  `json:"location_id"`
	ParentID   int64  `json:"parent_id"`
	UserID     int64  `json:"user_id"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"`
}

// Outcome is what happened to one message.
type Outcome string

const (
	Stored        Outcome = "stored"
	Duplicate     Outcome = "duplicate"
	Invalid       Outcome = "invalid"
	ParentMissing Outcome = "parent_missing"
	Retry         Outcome = "retry"
)

// Ack reports whether the message is finished with. Only Retry is redelivered.
func (o Outcome) Ack() bool { return o != Retry }

type Options struct {
	BatchSize  int
	MaxWait    time.Duration
	RetryDelay time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 2 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
}

type Consumer struct {
	Threads   store.ThreadStore
	Analytics *analytics.Publisher
	Log       *zap.Logger
	Options   Options

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewConsumer(ts store.ThreadStore, pub *analytics.Publisher, log *zap.Logger, opts Options) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	opts.applyDefaults()
	return &Consumer{
		Threads:   ts,
		Analytics: pub,
		Log:       log.With(zap.String("component", "replies_consumer")),
		Options:   opts,
		seen:      make(map[string]struct{}),
	}
}

// Handle processes one payload. Redelivered event ids are skipped once they
// have been stored by this process.
func (c *Consumer) Handle(ctx context.Context, data []byte) Outcome {
	out := c.handle(ctx, data)
	metrics.RepliesIngested.WithLabelValues(string(out)).Inc()
	return out
}

func (c *Consumer) handle(ctx context.Context, data []byte) Outcome {
	var ev CreateReplyEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.Log.Warn("invalid reply event", zap.Error(err))
		return Invalid
	}
	if ev.EventID != "" && c.wasSeen(ev.EventID) {
		return Duplicate
	}

	rec, err := thread.PrepareReply(thread.ReplyInput{
		LocationID: ev.LocationID,
		UserID:     ev.UserID,
		ParentID:   ev.ParentID,
		Text:       ev.Text,
	})
	if err != nil {
		c.Log.Warn("reply event rejected", zap.String("event_id", ev.EventID), zap.Error(err))
		return Invalid
	}

	saved, err := c.Threads.Append(ctx, rec)
	switch {
	case errors.Is(err, store.ErrParentNotFound):
		c.Log.Warn("reply parent not found",
			zap.String("event_id", ev.EventID),
			zap.Int64("location_id", ev.LocationID),
			zap.Int64("parent_id", ev.ParentID))
		return ParentMissing
	case err != nil:
		c.Log.Error("append reply", zap.String("event_id", ev.EventID), zap.Error(err))
		return Retry
	}

	if ev.EventID != "" {
		c.markSeen(ev.EventID)
	}
	c.Analytics.Publish(analytics.SubjectSocialReviewCreated, "social.review_created", saved.UserID, map[string]any{
		"review_id":   saved.ID,
		"location_id": saved.LocationID,
		"parent_id":   saved.ParentID,
		"source":      "bus",
	})
	return Stored
}

func (c *Consumer) wasSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

func (c *Consumer) markSeen(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; ok {
		return
	}
	c.seen[id] = struct{}{}
	c.order = append(c.order, id)
	if len(c.order) > seenLimit {
		delete(c.seen, c.order[0])
		c.order = c.order[1:]
	}
}

// Start subscribes with a durable pull consumer and processes batches until
// ctx is done.
func (c *Consumer) Start(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.PullSubscribe(Subject, Durable)
	if err != nil {
		return err
	}
	go c.loop(ctx, sub)
	return nil
}

// fetcher is the part of a pull subscription the loop uses.
type fetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
	Unsubscribe() error
}

// settler finishes one delivered message.
type settler interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
}

func (c *Consumer) loop(ctx context.Context, sub fetcher) {
	defer func() { _ = sub.Unsubscribe() }()
	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := sub.Fetch(c.Options.BatchSize, nats.MaxWait(c.Options.MaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.Log.Warn("fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		for _, m := range msgs {
			c.settle(m, c.Handle(ctx, m.Data))
		}
	}
}

func (c *Consumer) settle(m settler, out Outcome) {
	var err error
	if out.Ack() {
		err = m.Ack()
	} else {
		err = m.NakWithDelay(c.Options.RetryDelay)
	}
	if err != nil {
		c.Log.Warn("settle message", zap.String("outcome", string(out)), zap.Error(err))
	}
}
