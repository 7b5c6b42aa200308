package button

import (
	"time"

	"github.com/gr-butler/envmon/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

const (
	pollInterval = 10 * time.Millisecond
	// a button held past this is treated as stuck
	maxIncrements = 10
)

// Clock is the time base used while measuring a hold. clockwork.Clock
// satisfies it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type Indicator interface {
	Flash(count int, d time.Duration)
}

// Reader measures how long the button is held, in hold increments.
type Reader struct {
	pin      gpio.PinIn
	clk      Clock
	ind      Indicator
	Hold     time.Duration
	Debounce time.Duration
}

func NewReader(pin gpio.PinIn, clk Clock, ind Indicator, hold, debounce time.Duration) *Reader {
	if hold <= 0 {
		hold = env.DefaultHoldInterval
	}
	return &Reader{pin: pin, clk: clk, ind: ind, Hold: hold, Debounce: debounce}
}

// Count blocks until the button is released and returns the number of hold
// increments. A press that is gone after the debounce delay counts 0.
// The first increment is registered by the press itself; the first interval
// is shortened to allow for the time taken to wake up.
func (r *Reader) Count() int {
	if r.pin == nil {
		return 0
	}
	if r.Debounce > 0 {
		r.clk.Sleep(r.Debounce)
	}
	if r.pin.Read() != gpio.High {
		logger.Debug("Button released before debounce ended")
		return 0
	}

	n := 1
	next := r.clk.Now().Add(r.Hold * 3 / 4)
	for r.pin.Read() == gpio.High {
		if !r.clk.Now().Before(next) {
			if n >= maxIncrements {
				logger.Warnf("Button held for more than [%v] increments, giving up", maxIncrements)
				break
			}
			n++
			if r.ind != nil {
				r.ind.Flash(1, env.DelayAck)
			}
			next = r.clk.Now().Add(r.Hold)
		}
		r.clk.Sleep(pollInterval)
	}
	logger.Debugf("Button held for [%v] increments", n)
	return n
}
