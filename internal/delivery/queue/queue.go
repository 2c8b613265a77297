// Package queue persists outbound messages in Redis through asynq so that
// delivery survives restarts and rate-limit retries.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/example/weekend-scheduler/internal/delivery"
)

const (
	// TaskTypeDeliver carries one delivery.Message.
	TaskTypeDeliver = "delivery:message"
	// QueueName is the asynq queue used for deliveries.
	QueueName = "delivery"

	defaultMaxRetry  = 5
	defaultRetention = 24 * time.Hour
)

// Enqueuer is the subset of *asynq.Client used by the outbox.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*asynq.Client)(nil)

// ParseRedisURL converts a redis:// URL into asynq connection options.
func ParseRedisURL(raw string) (asynq.RedisConnOpt, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("queue: redis url is required")
	}
	opt, err := asynq.ParseRedisURI(raw)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	return opt, nil
}

// Outbox is a delivery.Transport that enqueues messages instead of sending
// them. Messages carrying a DedupKey are enqueued at most once.
type Outbox struct {
	client Enqueuer
	logger *slog.Logger
}

var _ delivery.Transport = (*Outbox)(nil)

// NewOutbox wraps an asynq client.
func NewOutbox(client Enqueuer, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{client: client, logger: logger.With("component", "Outbox")}
}

// Send enqueues msg. A task that was already enqueued under the same
// DedupKey is treated as delivered.
func (o *Outbox) Send(ctx context.Context, msg delivery.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: encode message: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueName),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Retention(defaultRetention),
	}
	if msg.DedupKey != "" {
		opts = append(opts, asynq.TaskID(msg.DedupKey))
	}

	info, err := o.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeDeliver, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		o.logger.DebugContext(ctx, "message already queued", "dedup_key", msg.DedupKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	o.logger.DebugContext(ctx, "message queued", "task_id", info.ID, "kind", string(msg.Kind))
	return nil
}

// Handler forwards queued messages to a transport.
type Handler struct {
	transport delivery.Transport
	logger    *slog.Logger
}

// NewHandler builds the task handler.
func NewHandler(transport delivery.Transport, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{transport: transport, logger: logger.With("component", "DeliveryWorker")}
}

// ProcessTask implements asynq.Handler. Undecodable payloads are not retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var msg delivery.Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		h.logger.ErrorContext(ctx, "discarding undecodable task", "error", err, "type", task.Type())
		return fmt.Errorf("queue: decode message: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("queue: deliver %s: %w", msg.Kind, err)
	}
	return nil
}

// Worker runs an asynq server consuming the delivery queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker configures a server with the given concurrency.
func NewWorker(opt asynq.RedisConnOpt, concurrency int, handler *Handler, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "DeliveryWorker")

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.ErrorContext(ctx, "delivery task failed", "type", task.Type(), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeDeliver, handler)
	return &Worker{server: srv, mux: mux, logger: logger}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("queue: start worker: %w", err)
	}
	w.logger.InfoContext(ctx, "delivery worker started")
	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("delivery worker stopped")
	return nil
}
