// Package app wires the engine's contexts, infrastructure and workers
// together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	eventsCache "github.com/convenehq/convene/internal/events/infrastructure/cache"
	eventsPersistence "github.com/convenehq/convene/internal/events/infrastructure/persistence"
	"github.com/convenehq/convene/internal/registrations/application/commands"
	registrationServices "github.com/convenehq/convene/internal/registrations/application/services"
	registrationsDomain "github.com/convenehq/convene/internal/registrations/domain"
	registrationsPersistence "github.com/convenehq/convene/internal/registrations/infrastructure/persistence"
	reminderServices "github.com/convenehq/convene/internal/reminders/application/services"
	"github.com/convenehq/convene/internal/reminders/application/workers"
	remindersDomain "github.com/convenehq/convene/internal/reminders/domain"
	remindersPersistence "github.com/convenehq/convene/internal/reminders/infrastructure/persistence"
	"github.com/convenehq/convene/internal/reminders/infrastructure/sender"
	"github.com/convenehq/convene/internal/shared/infrastructure/eventbus"
	"github.com/convenehq/convene/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/convenehq/convene/internal/shared/infrastructure/persistence"
	"github.com/convenehq/convene/pkg/config"
)

// Container holds the wired application graph.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Pool  *pgxpool.Pool
	Redis *redis.Client

	Publisher       eventbus.Publisher
	OutboxProcessor *outbox.Processor

	EventRepo eventsDomain.Repository

	RegisterHandler       *commands.RegisterHandler
	CancelHandler         *commands.CancelHandler
	MarkAttendanceHandler *commands.MarkAttendanceHandler

	Scheduler      *reminderServices.Scheduler
	Dispatcher     *reminderServices.Dispatcher
	DispatchWorker *workers.DispatchWorker

	closers []func() error
}

// New builds the application graph from configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	c.Pool = pool
	c.closers = append(c.closers, func() error { pool.Close(); return nil })

	uow := sharedPersistence.NewPostgresUnitOfWork(pool)
	outboxRepo := outbox.NewPostgresRepository(pool)

	var eventRepo eventsDomain.Repository = eventsPersistence.NewPostgresEventRepository(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		c.Redis = redis.NewClient(opts)
		c.closers = append(c.closers, c.Redis.Close)
		eventRepo = eventsCache.NewRedisEventCache(eventRepo, c.Redis, cfg.EventCacheTTL, logger)
	}
	c.EventRepo = eventRepo

	regRepo := registrationsPersistence.NewPostgresRegistrationRepository(pool)
	reminderRepo := remindersPersistence.NewPostgresReminderRepository(pool)

	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		c.Publisher = publisher
	} else {
		c.Publisher = eventbus.NewNoopPublisher(logger)
	}
	c.closers = append(c.closers, c.Publisher.Close)

	c.OutboxProcessor = outbox.NewProcessor(outboxRepo, c.Publisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
		RetentionDays:    cfg.OutboxRetentionDays,
		CleanupInterval:  outbox.DefaultProcessorConfig().CleanupInterval,
	}, logger)

	scheduler := reminderServices.NewScheduler(
		reminderRepo,
		&seatedSubjectLister{repo: regRepo},
		reminderChannels(cfg.ReminderChannels, logger),
		logger,
	)
	c.Scheduler = scheduler

	var notifier reminderServices.Sender
	if cfg.RabbitMQURL != "" {
		amqpSender, err := sender.NewAMQPSender(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create notification sender: %w", err)
		}
		c.closers = append(c.closers, amqpSender.Close)
		notifier = amqpSender
	} else {
		notifier = sender.NewNoopSender(logger)
	}
	if cfg.SenderBreakerEnabled {
		breakerCfg := sender.DefaultBreakerConfig()
		if cfg.SenderBreakerThreshold > 0 {
			breakerCfg.FailureThreshold = uint32(cfg.SenderBreakerThreshold)
		}
		notifier = sender.NewBreakerSender(notifier, breakerCfg, logger)
	}

	policy := remindersDomain.BackoffPolicy{
		Base:        cfg.ReminderBackoffBase,
		Max:         cfg.ReminderBackoffMax,
		MaxAttempts: cfg.ReminderMaxAttempts,
	}
	dispatcher := reminderServices.NewDispatcher(reminderRepo, eventRepo, notifier, policy, reminderServices.DispatcherConfig{
		BatchSize:    cfg.ReminderBatchSize,
		Concurrency:  cfg.ReminderConcurrency,
		Retention:    cfg.ReminderRetention,
		OverdueAfter: cfg.ReminderOverdueAfter,
	}, logger)
	c.Dispatcher = dispatcher
	c.DispatchWorker = workers.NewDispatchWorker(dispatcher, cfg.SweepInterval, cfg.MaintenanceInterval, logger)

	promoter := registrationServices.NewWaitlistPromoter(regRepo, outboxRepo, scheduler, logger)
	c.RegisterHandler = commands.NewRegisterHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)
	c.CancelHandler = commands.NewCancelHandler(eventRepo, regRepo, outboxRepo, scheduler, promoter, uow)
	c.MarkAttendanceHandler = commands.NewMarkAttendanceHandler(eventRepo, regRepo, outboxRepo, promoter, uow)

	return c, nil
}

// Close releases all held resources in reverse wiring order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn("failed to close resource", slog.Any("error", err))
		}
	}
}

// seatedSubjectLister adapts the registration repository to the
// reminder scheduler's SubjectLister port.
type seatedSubjectLister struct {
	repo registrationsDomain.Repository
}

func (l *seatedSubjectLister) ListSeatedSubjects(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	regs, err := l.repo.FindLiveByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	subjects := make([]uuid.UUID, 0, len(regs))
	for _, reg := range regs {
		if reg.Status().CountsAgainstCapacity() {
			subjects = append(subjects, reg.SubjectID())
		}
	}
	return subjects, nil
}

func reminderChannels(names []string, logger *slog.Logger) []remindersDomain.Channel {
	channels := make([]remindersDomain.Channel, 0, len(names))
	for _, name := range names {
		channel := remindersDomain.Channel(name)
		if !channel.IsValid() {
			logger.Warn("ignoring unknown reminder channel", slog.String("channel", name))
			continue
		}
		channels = append(channels, channel)
	}
	return channels
}
