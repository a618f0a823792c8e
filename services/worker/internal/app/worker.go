package app

import (
	"context"
	"fmt"
	"log/slog"

	"petsphere/pkg/queue"
)

// Notifier delivers an owner-facing notification for a completed job.
// Push and email providers plug in behind this interface; the default
// implementation records the delivery in the service log.
type Notifier interface {
	Notify(ctx context.Context, job queue.Job) error
}

// LogNotifier writes each notification to the structured log. It stands in
// for a real delivery channel in development and test environments.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, job queue.Job) error {
	n.logger.Info("notification delivered",
		"job_id", job.ID,
		"event", job.Event,
		"pet_id", job.PetID,
		"owner_id", job.OwnerID,
		"attempt", job.Attempts,
	)
	return nil
}

// Worker consumes notification jobs and hands them to a Notifier.
type Worker struct {
	queue       *queue.RedisJobQueue
	notifier    Notifier
	concurrency int
}

type Config struct {
	Queue       *queue.RedisJobQueue
	Notifier    Notifier
	Concurrency int
}

func NewWorker(cfg Config) (*Worker, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(nil)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{
		queue:       cfg.Queue,
		notifier:    notifier,
		concurrency: concurrency,
	}, nil
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.queue.Start(ctx, w.concurrency, w.handle)
	<-ctx.Done()
	return ctx.Err()
}

func (w *Worker) handle(ctx context.Context, job queue.Job) error {
	switch job.Event {
	case queue.EventPetCreated, queue.EventPetPhotoUpdated:
		return w.notifier.Notify(ctx, job)
	default:
		// Unknown events are acked without delivery so a stale producer
		// cannot wedge the stream.
		slog.Warn("skipping unknown event", "job_id", job.ID, "event", job.Event)
		return nil
	}
}
