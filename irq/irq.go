// Package irq holds the wake reasons raised from interrupt context.
//
// Every source owns exactly one flag. The raising side (an edge watcher or a
// serial reader, standing in for an ISR) only ever sets its own flag and
// nudges the wake channel; the dispatch loop is the only code that clears
// flags, and it only looks at them after returning from a sleep.
package irq

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Source is a single wake reason, one bit per source.
type Source uint8

const (
	Button Source = 1 << iota
	Serial
)

const maxSources = 8

var names = map[Source]string{
	Button: "button",
	Serial: "serial",
}

func (s Source) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for i := 0; i < maxSources; i++ {
		bit := Source(1 << i)
		if s&bit == 0 {
			continue
		}
		if n, ok := names[bit]; ok {
			parts = append(parts, n)
		} else {
			parts = append(parts, fmt.Sprintf("0x%02X", uint8(bit)))
		}
	}
	return strings.Join(parts, "|")
}

// Flags is the set of pending wake reasons.
type Flags struct {
	bits [maxSources]atomic.Bool
	wake chan struct{}
}

func NewFlags() *Flags {
	return &Flags{wake: make(chan struct{}, 1)}
}

// Raise sets the flags in s and nudges any sleeper. It never blocks.
func (f *Flags) Raise(s Source) {
	for i := 0; i < maxSources; i++ {
		if s&(1<<i) != 0 {
			f.bits[i].Store(true)
		}
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether any flag is set.
func (f *Flags) Pending() bool {
	return f.Snapshot() != 0
}

// Snapshot returns every flag currently set.
func (f *Flags) Snapshot() Source {
	var s Source
	for i := 0; i < maxSources; i++ {
		if f.bits[i].Load() {
			s |= 1 << i
		}
	}
	return s
}

// Clear drops the flags in s once their work has been dispatched.
func (f *Flags) Clear(s Source) {
	for i := 0; i < maxSources; i++ {
		if s&(1<<i) != 0 {
			f.bits[i].Store(false)
		}
	}
}

// Wake is nudged on every Raise. A nudge may be stale; check Pending.
func (f *Flags) Wake() <-chan struct{} {
	return f.wake
}

// DrainWake discards a stale nudge. Call it before checking Pending so a
// Raise that lands in between is still seen.
func (f *Flags) DrainWake() {
	select {
	case <-f.wake:
	default:
	}
}
