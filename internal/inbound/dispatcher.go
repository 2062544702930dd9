package inbound

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultProcessTimeout = 60 * time.Second

// Runner consumes dispatched messages.
type Runner interface {
	Process(ctx context.Context, msg InboundMessage) error
}

// Dispatcher decouples webhook acknowledgment from processing. Messages
// for the same phone run strictly in arrival order; a global semaphore
// caps how many run at once across all phones.
type Dispatcher struct {
	logger  *slog.Logger
	runner  Runner
	timeout time.Duration
	sem     chan struct{}

	mu     sync.Mutex
	queues map[string][]InboundMessage
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithProcessTimeout bounds how long one message may take end to end.
func WithProcessTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.timeout = d }
}

func NewDispatcher(log *slog.Logger, runner Runner, concurrency int, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 16
	}
	d := &Dispatcher{
		logger:  log.With(slog.String("service", "dispatcher")),
		runner:  runner,
		timeout: defaultProcessTimeout,
		sem:     make(chan struct{}, concurrency),
		queues:  make(map[string][]InboundMessage),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue queues a message for processing and returns immediately. A
// phone with no active drainer gets one; otherwise the message joins the
// phone's queue and the drainer picks it up in order.
func (d *Dispatcher) Enqueue(msg InboundMessage) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, message dropped",
			slog.String("phone", msg.Phone),
			slog.String("transport_id", msg.TransportID),
		)
		return
	}
	if pending, ok := d.queues[msg.Phone]; ok {
		d.queues[msg.Phone] = append(pending, msg)
		d.mu.Unlock()
		return
	}
	d.queues[msg.Phone] = []InboundMessage{msg}
	d.wg.Add(1)
	go d.drain(msg.Phone)
	d.mu.Unlock()
}

func (d *Dispatcher) drain(phone string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		pending := d.queues[phone]
		if len(pending) == 0 {
			delete(d.queues, phone)
			d.mu.Unlock()
			return
		}
		msg := pending[0]
		d.queues[phone] = pending[1:]
		d.mu.Unlock()

		d.sem <- struct{}{}
		d.run(msg)
		<-d.sem
	}
}

func (d *Dispatcher) run(msg InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.runner.Process(ctx, msg); err != nil {
		d.logger.Error("process message failed",
			slog.String("phone", msg.Phone),
			slog.String("transport_id", msg.TransportID),
			slog.Any("error", err),
		)
	}
}

// Pending reports how many messages sit in the per-phone queues.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, pending := range d.queues {
		n += len(pending)
	}
	return n
}

// Close stops accepting new messages and waits for queued work to finish
// or the context to give up.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
