package internal

import (
	"context"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
)

func NewTimerExecutor(runtime *Runtime, interval time.Duration, limit int) *TimerExecutor {
	tickerCtx, tickerCancel := context.WithCancel(context.Background())

	return &TimerExecutor{
		runtime: runtime,
		limit:   limit,

		tickerCtx:    tickerCtx,
		tickerCancel: tickerCancel,
		ticker:       time.NewTicker(interval),
		done:         make(chan struct{}),
	}
}

// TimerExecutor triggers due timers periodically in the background.
type TimerExecutor struct {
	runtime *Runtime
	limit   int

	tickerCtx    context.Context
	tickerCancel context.CancelFunc
	ticker       *time.Ticker
	done         chan struct{}
}

func (e *TimerExecutor) Execute() {
	go func() {
		defer close(e.done)

		for {
			select {
			case <-e.ticker.C:
				e.executeTimers()
			case <-e.tickerCtx.Done():
				return
			}
		}
	}()
}

// Stop stops the ticker and waits for a running execution to finish.
func (e *TimerExecutor) Stop() {
	e.ticker.Stop()
	e.tickerCancel()
	<-e.done
}

func (e *TimerExecutor) executeTimers() {
	triggered, err := ExecuteTimers(e.tickerCtx, e.runtime, engine.ExecuteTimersCmd{Limit: e.limit})
	if err != nil {
		if e.tickerCtx.Err() == nil {
			e.runtime.Logger().Error("failed to execute timers", "error", err)
		}
		return
	}
	if len(triggered) != 0 {
		e.runtime.Logger().Debug("executed timers", "count", len(triggered))
	}
}
