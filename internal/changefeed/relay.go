package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
)

// RelayConfig controls how fast the relay drains the queue into the sink.
type RelayConfig struct {
	// DrainRate is the maximum number of events published per second.
	DrainRate int

	// BatchSize is how many events are dequeued and published together.
	BatchSize int

	// PollInterval is how long to sleep when the queue is empty.
	PollInterval time.Duration

	// MaxRetries is the number of extra publish attempts for a failed batch.
	MaxRetries int

	// RetryBackoff is the base delay, doubled after each failed attempt.
	RetryBackoff time.Duration
}

// DefaultRelayConfig returns sensible defaults for the relay.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		DrainRate:    100,
		BatchSize:    50,
		PollInterval: 100 * time.Millisecond,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// RelayConfigFrom extracts relay settings from the change feed configuration.
func RelayConfigFrom(cfg config.ChangeFeedConfig) RelayConfig {
	return RelayConfig{
		DrainRate:    cfg.DrainRate,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
}

// Relay moves events from a queue to a sink at a bounded rate.
type Relay struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	name   string
	queue  core.ChangeQueue
	sink   core.ChangeSink
	config RelayConfig

	published uint64
	dropped   uint64
}

// NewRelay creates a relay. name only labels log lines.
func NewRelay(name string, queue core.ChangeQueue, sink core.ChangeSink, cfg RelayConfig) *Relay {
	def := DefaultRelayConfig()
	if cfg.DrainRate <= 0 {
		cfg.DrainRate = def.DrainRate
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}

	return &Relay{
		name:   name,
		queue:  queue,
		sink:   sink,
		config: cfg,
	}
}

// Start launches the relay goroutine. Starting a running relay is a no-op;
// starting on a context that is already done fails.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("relay %s: %w", r.name, err)
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.run(ctx, r.stopCh, r.doneCh)
	log.Printf("[RELAY:%s] Started with drain rate: %d events/sec", r.name, r.config.DrainRate)
	return nil
}

// Stop halts the relay and publishes whatever is still buffered.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh

	flushed, err := r.Flush(ctx)
	log.Printf("[RELAY:%s] Stopped (published: %d, dropped: %d, flushed on stop: %d)",
		r.name, r.Published(), r.Dropped(), flushed)
	return err
}

// IsRunning reports whether the relay goroutine is active.
func (r *Relay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Published returns the number of events delivered to the sink.
func (r *Relay) Published() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published
}

// Dropped returns the number of events abandoned after exhausting retries.
func (r *Relay) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Flush publishes every buffered event without rate limiting and returns
// how many were delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		events, err := r.queue.Dequeue(ctx, r.config.BatchSize)
		if err != nil && !errors.Is(err, ErrQueueClosed) {
			return total, fmt.Errorf("failed to dequeue change events: %w", err)
		}
		if len(events) == 0 {
			return total, nil
		}
		if err := r.publish(ctx, events); err != nil {
			return total, err
		}
		total += len(events)
	}
}

func (r *Relay) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// Burst equals the batch size so a full batch can be admitted at once.
	limiter := rate.NewLimiter(rate.Limit(r.config.DrainRate), r.config.BatchSize)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		events, err := r.queue.Dequeue(ctx, r.config.BatchSize)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			log.Printf("[RELAY:%s] Dequeue error: %v", r.name, err)
		}
		if len(events) == 0 {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(r.config.PollInterval):
			}
			continue
		}

		if err := limiter.WaitN(ctx, len(events)); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[RELAY:%s] Rate limiter error: %v", r.name, err)
		}

		if err := r.publish(ctx, events); err != nil {
			log.Printf("[RELAY:%s] ERROR: %v", r.name, err)
		}
	}
}

// publish delivers one batch, retrying with exponential backoff. A batch
// that still fails is counted as dropped.
func (r *Relay) publish(ctx context.Context, events []*core.ChangeEvent) error {
	backoff := r.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		if err = r.sink.Publish(ctx, events...); err == nil {
			r.mu.Lock()
			r.published += uint64(len(events))
			r.mu.Unlock()
			log.Printf("[RELAY:%s] Published %d event(s) (duration: %v, queue size: %d)",
				r.name, len(events), time.Since(start), r.queue.Size())
			return nil
		}
		log.Printf("[RELAY:%s] Publish attempt %d/%d failed: %v", r.name, attempt+1, r.config.MaxRetries+1, err)
	}

	r.mu.Lock()
	r.dropped += uint64(len(events))
	r.mu.Unlock()
	return fmt.Errorf("failed to publish %d change event(s) after %d attempt(s): %w",
		len(events), r.config.MaxRetries+1, err)
}

// NewEvent builds a change event stamped with a fresh ID and the current time.
func NewEvent(table string, op core.OperationType, id string, doc core.Document) *core.ChangeEvent {
	return &core.ChangeEvent{
		ID:         uuid.NewString(),
		Table:      table,
		Operation:  op,
		DocumentID: id,
		Document:   doc,
		Timestamp:  time.Now().UTC(),
	}
}

// NewQueue creates the queue selected by cfg.Queue.
func NewQueue(cfg config.ChangeFeedConfig) (core.ChangeQueue, error) {
	switch cfg.Queue {
	case "", "memory":
		return NewMemoryQueue(cfg.QueueBufferSize), nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisEndpoint}})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis change queue at %s: %w", cfg.RedisEndpoint, err)
		}
		log.Printf("[REDIS] Change queue connected (%s, key: %s)", cfg.RedisEndpoint, cfg.RedisKey)
		return NewRedisQueue(client, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unsupported change queue: %s", cfg.Queue)
	}
}

// NewSink creates the sink selected by cfg.Sink.
func NewSink(cfg config.ChangeFeedConfig) (core.ChangeSink, error) {
	switch cfg.Sink {
	case "kafka":
		return NewKafkaSink(cfg.Kafka)
	case "log":
		return LogSink{}, nil
	default:
		return nil, fmt.Errorf("unsupported change sink: %s", cfg.Sink)
	}
}
