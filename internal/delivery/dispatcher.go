package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/example/weekend-scheduler/internal/application"
)

// ErrDispatcherClosed is returned when a message is offered after Close.
var ErrDispatcherClosed = errors.New("delivery: dispatcher closed")

// DispatcherOptions sizes the worker pool and queue.
type DispatcherOptions struct {
	Workers int
	Buffer  int
	Logger  *slog.Logger
}

// Dispatcher renders lifecycle events and reminder intents and delivers
// them from a bounded queue. Callers never block: when the queue is full the
// message is dropped and counted.
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger
	queue     chan Message
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Int64
	failed    atomic.Int64
}

var (
	_ application.Notifier     = (*Dispatcher)(nil)
	_ application.ReminderSink = (*Dispatcher)(nil)
)

// NewDispatcher starts the workers. Close must be called to drain them.
func NewDispatcher(transport Transport, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Dispatcher{
		transport: transport,
		logger:    opts.Logger.With("component", "Dispatcher"),
		queue:     make(chan Message, opts.Buffer),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// PollCreated implements application.Notifier.
func (d *Dispatcher) PollCreated(ctx context.Context, status application.PollStatus) {
	d.Offer(ctx, RenderPollCreated(status))
}

// PollUpdated implements application.Notifier.
func (d *Dispatcher) PollUpdated(ctx context.Context, status application.PollStatus) {
	d.Offer(ctx, RenderPollUpdated(status))
}

// PollClosed implements application.Notifier.
func (d *Dispatcher) PollClosed(ctx context.Context, summary application.PollSummary) {
	d.Offer(ctx, RenderPollClosed(summary))
}

// Remind implements application.ReminderSink.
func (d *Dispatcher) Remind(ctx context.Context, intent application.ReminderIntent) {
	d.Offer(ctx, RenderReminder(intent))
}

// Offer queues msg without blocking and reports whether it was accepted.
func (d *Dispatcher) Offer(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "message dropped", "error", ErrDispatcherClosed, "kind", string(msg.Kind), "poll_id", msg.PollID)
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "delivery queue full, message dropped", "kind", string(msg.Kind), "poll_id", msg.PollID)
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// Dropped returns the number of messages discarded.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Failed returns the number of messages the transport rejected.
func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		if err := d.transport.Send(context.Background(), msg); err != nil {
			d.failed.Add(1)
			d.logger.Error("failed to deliver message",
				"error", err,
				"kind", string(msg.Kind),
				"poll_id", msg.PollID,
				"channel_id", msg.ChannelID,
			)
		}
	}
}
