package button

import (
	"context"
	"time"

	"github.com/gr-butler/envmon/irq"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

const edgeTimeout = 500 * time.Millisecond

// Watcher stands in for the button interrupt. On a rising edge it raises
// irq.Button and stops listening until Rearm is called, so a bouncing contact
// cannot raise the flag again before the press has been handled.
type Watcher struct {
	pin   gpio.PinIn
	flags *irq.Flags
	rearm chan struct{}
}

func NewWatcher(pin gpio.PinIn, flags *irq.Flags) *Watcher {
	return &Watcher{pin: pin, flags: flags, rearm: make(chan struct{}, 1)}
}

// Run watches the pin until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	logger.Infof("Starting button watcher on [%v]", w.pin)
	defer func() { _ = w.pin.Halt() }()
	for {
		if err := w.pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			logger.Errorf("Failed to enable button edge detection [%v]", err)
			return
		}
		for !w.pin.WaitForEdge(edgeTimeout) {
			if ctx.Err() != nil {
				return
			}
		}
		if err := w.pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
			logger.Warnf("Failed to disable button edge detection [%v]", err)
		}
		w.flags.Raise(irq.Button)

		select {
		case <-w.rearm:
		case <-ctx.Done():
			return
		}
	}
}

// Rearm re-enables the watcher once the loop has handled a press.
func (w *Watcher) Rearm() {
	select {
	case w.rearm <- struct{}{}:
	default:
	}
}
