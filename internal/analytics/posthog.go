package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEndpoint  = "https://us.i.posthog.com/batch/"
	defaultQueueSize = 1024
	defaultBatchSize = 50
	flushInterval    = 5 * time.Second
	captureTimeout   = 10 * time.Second
)

// PostHogConfig configures the capture client.
type PostHogConfig struct {
	APIKey    string
	Endpoint  string // defaults to the PostHog US cloud batch endpoint
	QueueSize int
	BatchSize int
}

// PostHogSink batches events and POSTs them to a PostHog-compatible batch
// endpoint from a background goroutine. Enqueue never blocks: when the
// queue is full the event is dropped and counted, which keeps analytics
// strictly best-effort with respect to the request path.
type PostHogSink struct {
	cfg     PostHogConfig
	queue   chan Event
	done    chan struct{}
	client  *http.Client
	log     *zap.Logger
	dropped atomic.Int64
}

// NewPostHogSink starts the flush goroutine. Close drains what it can and
// stops it.
func NewPostHogSink(cfg PostHogConfig, log *zap.Logger) *PostHogSink {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &PostHogSink{
		cfg:    cfg,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		client: &http.Client{Timeout: captureTimeout},
		log:    log,
	}
	go s.run()
	return s
}

// Enqueue hands an event to the flush goroutine, dropping it if the queue
// is full.
func (s *PostHogSink) Enqueue(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
		s.log.Warn("analytics queue full, dropping event", zap.String("event", e.Name))
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (s *PostHogSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close flushes pending events and stops the background goroutine.
func (s *PostHogSink) Close() error {
	close(s.queue)
	<-s.done
	if n := s.Dropped(); n > 0 {
		s.log.Warn("analytics events were dropped during this run", zap.Int64("dropped", n))
	}
	return nil
}

func (s *PostHogSink) run() {
	defer close(s.done)

	batch := make([]Event, 0, s.cfg.BatchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.send(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

type captureBatch struct {
	APIKey string         `json:"api_key"`
	Batch  []captureEvent `json:"batch"`
}

type captureEvent struct {
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// send posts one batch. Failures are logged and the batch is dropped;
// there is no retry.
func (s *PostHogSink) send(events []Event) {
	payload := captureBatch{
		APIKey: s.cfg.APIKey,
		Batch:  make([]captureEvent, 0, len(events)),
	}
	for _, e := range events {
		payload.Batch = append(payload.Batch, captureEvent{
			Event:      e.Name,
			DistinctID: e.DistinctID,
			Properties: e.Properties,
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to encode analytics batch", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		s.log.Warn("failed to build analytics request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("analytics capture failed", zap.Error(err), zap.Int("events", len(events)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.log.Warn("analytics collector rejected batch",
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode)),
			zap.Int("events", len(events)),
		)
	}
}
