package orchestrate

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/bolt-foundry/gambit/deck"
)

// HandlerPort fires a handler deck as a side-effect spawn (spec.md §4.5:
// "Handlers (onBusy, onIdle, onError) are deck references invoked as
// side-effect spawns"). The result is intentionally discarded — handlers
// never feed back into the loop's message history.
type HandlerPort interface {
	FireHandler(ctx context.Context, ref deck.Ref, payload any)
}

// BusyMonitor fires onBusy after deck.DefaultStatusDelay has elapsed with a
// pass in flight, then re-fires every spec.RepeatMs until Stop is called
// (spec.md §4.5). A nil *deck.HandlerSpec or nil HandlerPort yields a
// no-op monitor, so callers can always call StartBusyMonitor/Stop
// unconditionally.
type BusyMonitor struct {
	stop chan struct{}
	done chan struct{}
}

// StartBusyMonitor begins watching a pass. Call Stop when the pass
// completes, successfully or not.
func StartBusyMonitor(ctx context.Context, spec *deck.HandlerSpec, port HandlerPort, payload any) *BusyMonitor {
	if spec == nil || port == nil {
		return nil
	}
	m := &BusyMonitor{stop: make(chan struct{}), done: make(chan struct{})}
	go m.run(ctx, spec, port, payload)
	return m
}

func (m *BusyMonitor) run(ctx context.Context, spec *deck.HandlerSpec, port HandlerPort, payload any) {
	defer close(m.done)

	timer := time.NewTimer(deck.DefaultStatusDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.stop:
		return
	case <-ctx.Done():
		return
	}

	repeat := time.Duration(spec.RepeatMs) * time.Millisecond
	if repeat <= 0 {
		repeat = deck.DefaultStatusDelay
	}
	limiter := rate.NewLimiter(rate.Every(repeat), 1)

	for {
		if limiter.Allow() {
			port.FireHandler(ctx, spec.Deck, payload)
		}
		select {
		case <-time.After(repeat):
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the monitor to stop and waits for its goroutine to exit.
// Safe to call on a nil *BusyMonitor (the no-op case).
func (m *BusyMonitor) Stop() {
	if m == nil {
		return
	}
	close(m.stop)
	<-m.done
}
