package trap

import (
	"sync/atomic"
	"time"
)

// TimerDriver fires at config.TickInterval, the hosted stand-in for
// set_next_trigger's periodic timer interrupt. Expired reports whether
// a tick has elapsed since the last check; its one caller is the
// kernel's stats loop (kernel.Kernel.Run), which prints one stats line
// per tick. No tick preempts a running task: a task gives up its turn
// only by yielding, blocking or exiting.
type TimerDriver struct {
	interval time.Duration
	ticks    int64
	stop     chan struct{}
}

// NewTimerDriver creates a driver that increments its tick counter
// every interval once Start is called.
func NewTimerDriver(interval time.Duration) *TimerDriver {
	return &TimerDriver{interval: interval, stop: make(chan struct{})}
}

// Start begins the background ticking goroutine.
func (d *TimerDriver) Start() {
	go func() {
		t := time.NewTicker(d.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				atomic.AddInt64(&d.ticks, 1)
			case <-d.stop:
				return
			}
		}
	}()
}

// Stop halts the ticking goroutine.
func (d *TimerDriver) Stop() { close(d.stop) }

// Ticks returns the total number of elapsed ticks since Start.
func (d *TimerDriver) Ticks() int64 { return atomic.LoadInt64(&d.ticks) }

// Expired reports whether at least one tick has occurred since last,
// and returns the current tick count to pass as the new last on the
// caller's next check.
func (d *TimerDriver) Expired(last int64) (bool, int64) {
	cur := d.Ticks()
	return cur > last, cur
}
