package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher sends notices on background goroutines, each bounded by timeout.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Dispatch returns immediately. After Close it drops the notice.
func (d *Dispatcher) Dispatch(n Notice) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, notice dropped", "kind", n.Kind, "to", n.Recipient.Email)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, n); err != nil {
			d.logger.Error("notice delivery failed", "kind", n.Kind, "to", n.Recipient.Email, "err", err)
			return
		}
		d.logger.Debug("notice delivered", "kind", n.Kind, "to", n.Recipient.Email)
	}()
}

// Wait blocks until every dispatched notice has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Close stops accepting notices and waits for in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
