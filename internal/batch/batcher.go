// Package batch buffers ingestion work and writes it in groups. A flush
// triggers when the batch is full or the flush interval elapses, whichever
// comes first.
package batch

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/ledger"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/retry"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// Envelope is one unit of ingestion work: the raw message plus the signal
// extracted from it, if any
type Envelope struct {
	Message *types.Message
	Signal  *types.PromotionSignal
}

// Config controls batching behavior
type Config struct {
	// BatchSize triggers a flush when this many envelopes are buffered
	BatchSize int
	// FlushInterval triggers a flush even when the batch is not full
	FlushInterval time.Duration
	// BufferSize bounds the enqueue channel
	BufferSize int
	// DropOldest sheds the oldest buffered envelope when the buffer is
	// full instead of blocking the producer
	DropOldest bool
	// RetryAttempts bounds the batch write retries before item replay
	RetryAttempts int
}

// DefaultConfig returns production batching defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		FlushInterval: 10 * time.Second,
		BufferSize:    1000,
		DropOldest:    false,
		RetryAttempts: 5,
	}
}

func (c *Config) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 5
	}
}

// Batcher accumulates envelopes and flushes them to storage and the ledger
type Batcher struct {
	config Config
	store  storage.Store
	ledger *ledger.Ledger
	logger *logging.Logger

	items   chan Envelope
	stopCh  chan struct{}
	doneCh  chan struct{}
	drainCh chan chan struct{}
	mu      sync.Mutex
	dropped int64
	started bool
}

// NewBatcher creates a batcher writing through store and ledger
func NewBatcher(config Config, store storage.Store, ledg *ledger.Ledger, logger *logging.Logger) *Batcher {
	config.normalize()
	return &Batcher{
		config:  config,
		store:   store,
		ledger:  ledg,
		logger:  logger.WithComponent("batcher"),
		items:   make(chan Envelope, config.BufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		drainCh: make(chan chan struct{}),
	}
}

// Start launches the flush loop
func (b *Batcher) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.run(ctx)
	b.logger.WithFields(map[string]interface{}{
		"batch_size":     b.config.BatchSize,
		"flush_interval": b.config.FlushInterval.String(),
	}).Info("batcher started")
}

// Stop flushes buffered work and stops the loop
func (b *Batcher) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
	b.logger.Info("batcher stopped")
}

// Enqueue adds one envelope. With DropOldest the oldest buffered envelope
// is shed when the buffer is full; otherwise the call blocks until there is
// room or the context ends.
func (b *Batcher) Enqueue(ctx context.Context, env Envelope) error {
	if !b.config.DropOldest {
		select {
		case b.items <- env:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case b.items <- env:
			return nil
		default:
		}
		select {
		case <-b.items:
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
		default:
		}
	}
}

// Drain flushes all currently buffered work and returns when it is written.
// A batcher that was never started has nothing buffered in flight.
func (b *Batcher) Drain(ctx context.Context) error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return nil
	}

	done := make(chan struct{})
	select {
	case b.drainCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many envelopes were shed under backpressure
func (b *Batcher) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Batcher) run(ctx context.Context) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]Envelope, 0, b.config.BatchSize)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		b.flush(ctx, pending)
		pending = pending[:0]
	}

	drainBuffered := func() {
		for {
			select {
			case env := <-b.items:
				pending = append(pending, env)
				if len(pending) >= b.config.BatchSize {
					flush()
				}
				continue
			default:
			}
			break
		}
	}

	for {
		select {
		case env := <-b.items:
			pending = append(pending, env)
			if len(pending) >= b.config.BatchSize {
				flush()
				ticker.Reset(b.config.FlushInterval)
			}
		case <-ticker.C:
			flush()
		case done := <-b.drainCh:
			drainBuffered()
			flush()
			close(done)
			ticker.Reset(b.config.FlushInterval)
		case <-b.stopCh:
			// Drain whatever producers got in before Stop
			drainBuffered()
			flush()
			return
		}
	}
}

// flush writes the raw messages as one batch, then records each signal.
// A failed batch write falls back to replaying messages one by one so a
// single bad row cannot sink its batchmates.
func (b *Batcher) flush(ctx context.Context, pending []Envelope) {
	messages := make([]*types.Message, 0, len(pending))
	for _, env := range pending {
		if env.Message != nil {
			messages = append(messages, env.Message)
		}
	}

	if len(messages) > 0 {
		result := retry.WithExponentialBackoff(ctx, b.retryConfig(), func(ctx context.Context, attempt int) error {
			return b.store.InsertMessages(ctx, messages)
		})
		if !result.Success {
			b.logger.WithError(result.LastError).WithField("batch_size", len(messages)).
				Warn("batch message write failed, replaying items")
			b.replayMessages(ctx, messages)
		}
	}

	for _, env := range pending {
		if env.Signal == nil || env.Message == nil {
			continue
		}
		_, err := b.ledger.Record(ctx, env.Signal, env.Message.ChannelID, env.Message.MessageID)
		if err != nil {
			b.logger.WithError(err).WithFields(map[string]interface{}{
				"channel_id": env.Message.ChannelID,
				"message_id": env.Message.MessageID,
			}).Error("failed to record mention")
		}
	}
}

func (b *Batcher) replayMessages(ctx context.Context, messages []*types.Message) {
	for _, msg := range messages {
		err := b.store.InsertMessages(ctx, []*types.Message{msg})
		if err != nil {
			b.logger.WithError(err).WithFields(map[string]interface{}{
				"channel_id": msg.ChannelID,
				"message_id": msg.MessageID,
			}).Error("failed to write message")
		}
	}
}

func (b *Batcher) retryConfig() *retry.RetryConfig {
	cfg := retry.DefaultRetryConfig()
	cfg.MaxAttempts = b.config.RetryAttempts
	cfg.Retryable = apperrors.IsRetryable
	return cfg
}
