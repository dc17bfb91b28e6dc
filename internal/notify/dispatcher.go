package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/metrics"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

// Dispatcher sends messages in the background. A failed send is logged as a
// delivery failure and never reported to the caller: the record mutation
// that triggered the mail has already been committed.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher bounding each send by timeout.
func NewDispatcher(sender Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Dispatch starts delivering msg and returns immediately. The send outlives
// the request: it keeps ctx values (correlation id, trace) but not its
// cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) {
	sendCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	metrics.NotificationsInFlight.Inc()
	go func() {
		defer d.wg.Done()
		defer metrics.NotificationsInFlight.Dec()

		if d.timeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(sendCtx, d.timeout)
			defer cancel()
		}

		l := logger.WithContext(sendCtx, d.logger).With(
			slog.String("transport", d.sender.Name()),
			slog.String("kind", msg.Kind),
		)

		if err := d.sender.Send(sendCtx, msg); err != nil {
			metrics.NotificationsSent.WithLabelValues(d.sender.Name(), metrics.OutcomeFailure).Inc()
			failure := apperrors.DeliveryFailure(err)
			l.ErrorContext(sendCtx, "notification delivery failed",
				slog.String("code", failure.Code),
				slog.String("error", failure.Error()),
			)
			return
		}
		metrics.NotificationsSent.WithLabelValues(d.sender.Name(), metrics.OutcomeSuccess).Inc()
		l.DebugContext(sendCtx, "notification delivered")
	}()
}

// Wait blocks until in-flight sends finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
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
