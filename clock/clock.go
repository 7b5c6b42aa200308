package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

// Source is the device's notion of time: a wall clock in whole seconds that
// can be set and nudged without touching the host clock, plus monotonic
// millisecond ticks for short timeouts.
type Source struct {
	clk    clockwork.Clock
	offset int64
	start  time.Time
}

func New(clk clockwork.Clock) *Source {
	return &Source{clk: clk, start: clk.Now()}
}

func NewReal() *Source {
	return New(clockwork.NewRealClock())
}

// Now returns wall-clock seconds since the epoch.
func (s *Source) Now() uint64 {
	t := s.clk.Now().Unix() + s.offset
	if t < 0 {
		return 0
	}
	return uint64(t)
}

// Set moves the wall clock to seconds.
func (s *Source) Set(seconds uint64) {
	before := s.Now()
	s.offset = int64(seconds) - s.clk.Now().Unix()
	logger.Infof("Wall clock set [%v] -> [%v]", before, seconds)
}

// Adjust shifts the wall clock by delta seconds.
func (s *Source) Adjust(delta int64) {
	s.offset += delta
	logger.Debugf("Wall clock adjusted by [%+d]s", delta)
}

// Millis returns monotonic milliseconds since the source was created.
func (s *Source) Millis() uint64 {
	return uint64(s.clk.Since(s.start) / time.Millisecond)
}

// Clock exposes the underlying time base for sleeps and timers.
func (s *Source) Clock() clockwork.Clock {
	return s.clk
}
