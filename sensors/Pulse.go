package sensors

import (
	"fmt"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
)

const pulseEdgeTimeout = time.Second

// PulseCounter counts falling edges on a pin, such as rain bucket tips or a
// flow meter. Each read returns the pulses since the previous read times
// Multiplier.
type PulseCounter struct {
	pin        gpio.PinIO
	Multiplier int32
	count      atomic.Int64
	total      atomic.Int64
	stop       chan struct{}
}

func NewPulseCounter(pinName string, multiplier int32) (*PulseCounter, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("failed to find %v - pulse pin", pinName)
	}
	logger.Infof("%s: %s", p, p.Function())

	// Ignore glitches lasting less than 10ms, and ignore repeated edges within 50ms.
	pin, err := gpioutil.Debounce(p, 10*time.Millisecond, 50*time.Millisecond, gpio.FallingEdge)
	if err != nil {
		return nil, fmt.Errorf("failed to set debounce: %w", err)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to enable edge detection: %w", err)
	}
	c := newPulseCounter(pin, multiplier)
	go c.monitor()
	return c, nil
}

func newPulseCounter(pin gpio.PinIO, multiplier int32) *PulseCounter {
	if multiplier == 0 {
		multiplier = 1
	}
	return &PulseCounter{pin: pin, Multiplier: multiplier, stop: make(chan struct{})}
}

func (c *PulseCounter) monitor() {
	logger.Infof("Starting pulse monitor on [%v]", c.pin)
	defer func() { _ = c.pin.Halt() }()
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		if !c.pin.WaitForEdge(pulseEdgeTimeout) {
			continue
		}
		if c.pin.Read() == gpio.Low {
			c.count.Add(1)
			n := c.total.Add(1)
			logger.Debugf("Pulse [%v] total [%v]", c.pin, n)
		}
	}
}

// Halt stops the monitor.
func (c *PulseCounter) Halt() {
	close(c.stop)
}

// Total is every pulse seen since start.
func (c *PulseCounter) Total() int64 {
	return c.total.Load()
}

func (c *PulseCounter) Read() (int32, error) {
	return int32(c.count.Swap(0)) * c.Multiplier, nil
}
