package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/convenehq/convene/internal/shared/domain"
	"github.com/convenehq/convene/internal/shared/infrastructure/eventbus"
)

// ProcessorConfig holds configuration for the outbox processor.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// RetentionDays controls how long published messages are kept
	// before the cleanup pass deletes them.
	RetentionDays   int
	CleanupInterval time.Duration
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: 1 * time.Second,
		RetryBackoffMax:  1 * time.Minute,
		RetentionDays:    14,
		CleanupInterval:  time.Hour,
	}
}

// Processor polls the outbox and publishes events to the message broker.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the polling loop in a goroutine.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)

	return nil
}

// Stop gracefully stops the processor.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

// IsRunning returns true if the processor is running.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	cleanupInterval := p.config.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		case <-cleanup.C:
			if err := p.Cleanup(ctx); err != nil {
				p.logger.Error("failed to clean up outbox", "error", err)
			}
		}
	}
}

// Cleanup deletes published messages older than the retention period.
func (p *Processor) Cleanup(ctx context.Context) error {
	days := p.config.RetentionDays
	if days <= 0 {
		days = 14
	}

	deleted, err := p.repo.DeleteOld(ctx, days)
	if err != nil {
		return err
	}
	if deleted > 0 {
		p.logger.Info("deleted old outbox messages",
			"deleted", deleted,
			"retention_days", days,
		)
	}
	return nil
}

func (p *Processor) processBatch(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.recordError(err)
		return err
	}

	p.recordProcessed(messages)

	for _, msg := range messages {
		if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			p.handlePublishFailure(ctx, msg, err)
			continue
		}

		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message as published",
				"id", msg.ID,
				"event_id", msg.EventID,
				"error", err,
			)
		} else {
			p.recordPublished()
		}
	}

	return nil
}

func (p *Processor) handlePublishFailure(ctx context.Context, msg *Message, pubErr error) {
	meta := p.metadataFields(msg)
	p.logger.Warn("failed to publish message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"correlation_id", meta.CorrelationID,
		"actor_id", meta.ActorID,
		"error", pubErr,
	)

	errStr := pubErr.Error()
	if p.shouldDeadLetter(msg) {
		p.recordDead(pubErr)
		if err := p.repo.MarkDead(ctx, msg.ID, errStr); err != nil {
			p.logger.Error("failed to mark message as dead-lettered",
				"id", msg.ID, "error", err)
		}
		return
	}

	p.recordFailed(pubErr)
	nextRetryAt := time.Now().Add(p.retryBackoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, errStr, nextRetryAt); err != nil {
		p.logger.Error("failed to mark message as failed",
			"id", msg.ID, "error", err)
	}
}

func (p *Processor) shouldDeadLetter(msg *Message) bool {
	if p.config.MaxRetries <= 0 {
		return true
	}
	return msg.RetryCount+1 >= p.config.MaxRetries
}

func (p *Processor) retryBackoff(nextRetryCount int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	max := p.config.RetryBackoffMax
	if max <= 0 {
		max = time.Minute
	}
	if nextRetryCount < 1 {
		nextRetryCount = 1
	}

	// Shifting past 62 bits would overflow time.Duration long before
	// the cap kicks in.
	shift := nextRetryCount - 1
	if shift > 32 {
		return max
	}

	backoff := base * time.Duration(1<<shift)
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}

type metadataFields struct {
	CorrelationID string
	ActorID       string
}

func (p *Processor) metadataFields(msg *Message) metadataFields {
	if len(msg.Metadata) == 0 {
		return metadataFields{}
	}

	var metadata domain.EventMetadata
	if err := json.Unmarshal(msg.Metadata, &metadata); err != nil {
		return metadataFields{}
	}

	return metadataFields{
		CorrelationID: metadata.CorrelationID.String(),
		ActorID:       metadata.ActorID.String(),
	}
}

// ProcessOnce processes a single batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.processBatch(ctx)
}

// Stats returns processor statistics.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns current processor statistics.
func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	stats := p.stats
	stats.IsRunning = p.IsRunning()
	return stats
}

func (p *Processor) recordPublished() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.PublishedCount++
}

func (p *Processor) recordFailed(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.FailedCount++
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordDead(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.DeadCount++
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordProcessed(messages []*Message) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastProcessedAt = &now
	if len(messages) == 0 {
		p.stats.LagSeconds = 0
		p.stats.OldestMessageAt = nil
		return
	}

	oldest := messages[0].CreatedAt
	for _, msg := range messages[1:] {
		if msg.CreatedAt.Before(oldest) {
			oldest = msg.CreatedAt
		}
	}
	p.stats.OldestMessageAt = &oldest
	p.stats.LagSeconds = now.Sub(oldest).Seconds()
}
