package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDeliveryTimeout bounds a single background delivery.
const DefaultDeliveryTimeout = 10 * time.Second

// Async delivers events to a sink on background goroutines. Its methods
// return immediately and always return nil; delivery failures and panics are
// logged.
type Async struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps sink. A zero timeout selects DefaultDeliveryTimeout.
func NewAsync(sink Sink, log *zap.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{sink: sink, log: log, timeout: timeout}
}

func (a *Async) RecordEvent(ctx context.Context, e Event) error {
	e = stamp(e)
	a.dispatch(ctx, e, func(ctx context.Context) error { return a.sink.RecordEvent(ctx, e) })
	return nil
}

func (a *Async) RecordError(ctx context.Context, e Event, err error) error {
	e = stamp(e)
	a.dispatch(ctx, e, func(ctx context.Context) error { return a.sink.RecordError(ctx, e, err) })
	return nil
}

func (a *Async) dispatch(ctx context.Context, e Event, deliver func(context.Context) error) {
	// Delivery outlives the request that produced the event.
	base := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("telemetry sink panicked", zap.String("event", e.Name), zap.String("panic", fmt.Sprint(r)))
			}
		}()

		dctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		if err := deliver(dctx); err != nil {
			a.log.Warn("telemetry delivery failed", zap.String("event", e.Name), zap.Error(err))
		}
	}()
}

func stamp(e Event) Event {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
