package power

import (
	"context"
	"time"

	"github.com/gr-butler/envmon/irq"
	"github.com/jonboulle/clockwork"
)

// HostSleeper blocks on a timer standing in for the hardware alarm. Any raised
// IRQ ends a light sleep; a deep sleep only ends for the sources in DeepWake.
type HostSleeper struct {
	clk      clockwork.Clock
	flags    *irq.Flags
	DeepWake irq.Source
}

func NewHostSleeper(clk clockwork.Clock, flags *irq.Flags) *HostSleeper {
	return &HostSleeper{clk: clk, flags: flags, DeepWake: irq.Button}
}

func (h *HostSleeper) Sleep(ctx context.Context, depth Depth, d time.Duration) (Wake, time.Duration) {
	start := h.clk.Now()
	t := h.clk.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-t.Chan():
			return WakeAlarm, d
		case <-ctx.Done():
			return WakeCancelled, h.clk.Since(start)
		case <-h.flags.Wake():
			if depth == Deep && h.flags.Snapshot()&h.DeepWake == 0 {
				// this source cannot reach the core in deep sleep
				continue
			}
			return WakeInterrupt, h.clk.Since(start)
		}
	}
}
