/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	monotonic.go: Monotonic clock driven by a ticker, so reading ages survive
	real time clock changes on boards without a battery backed RTC.
*/

package common

import (
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
)

const monotonicStep = 10 * time.Millisecond

// Monotonic counts time since it was created.
type Monotonic struct {
	mu           sync.Mutex
	milliseconds uint64
	t            time.Time
	ticker       *time.Ticker
	stop         chan struct{}
}

func NewMonotonic() *Monotonic {
	m := &Monotonic{
		ticker: time.NewTicker(monotonicStep),
		stop:   make(chan struct{}),
	}
	go m.watcher()
	return m
}

func (m *Monotonic) watcher() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.ticker.C:
		}
		m.mu.Lock()
		m.milliseconds += uint64(monotonicStep / time.Millisecond)
		m.t = m.t.Add(monotonicStep)
		m.mu.Unlock()
	}
}

// Now returns the current monotonic time. Its zero is the creation time.
func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *Monotonic) Milliseconds() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.milliseconds
}

func (m *Monotonic) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// HumanizeTime formats t relative to now, e.g. "3 seconds ago".
func (m *Monotonic) HumanizeTime(t time.Time) string {
	return humanizeAt(t, m.Now())
}

func humanizeAt(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func (m *Monotonic) Unix() int64 {
	return int64(m.Since(time.Time{}).Seconds())
}

func (m *Monotonic) Stop() {
	m.ticker.Stop()
	close(m.stop)
}
