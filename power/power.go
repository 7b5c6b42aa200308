// Package power decides how the device waits for its next deadline.
//
// A wait is split into at most two depths. Light sleep keeps fast-wake
// peripherals (the serial receiver) able to interrupt; deep sleep only wakes on
// the armed alarm or an edge-triggered pin. When a serial wake capability is
// configured a long wait starts with a short light-sleep prelude so a serial
// user still gets a chance to wake the device.
package power

import (
	"context"
	"time"

	"github.com/gr-butler/envmon/irq"
	"github.com/gr-butler/envmon/metrics"
	logger "github.com/sirupsen/logrus"
)

type Depth int

const (
	Light Depth = iota
	Deep
)

func (d Depth) String() string {
	if d == Deep {
		return "deep"
	}
	return "light"
}

// Wake is the reason a single sleep call returned.
type Wake int

const (
	WakeAlarm Wake = iota
	WakeInterrupt
	WakeCancelled
)

// Sleeper enters one sleep depth with a single alarm armed for d. It returns
// why it woke and how long it actually slept.
type Sleeper interface {
	Sleep(ctx context.Context, depth Depth, d time.Duration) (Wake, time.Duration)
}

type Config struct {
	LightSleep      time.Duration // prelude before deep sleep
	MinDeepSleep    time.Duration // shorter waits stay in light sleep
	MaxLightSleep   time.Duration // longest single light-sleep alarm
	MaxDeepSleep    time.Duration // longest single deep-sleep alarm
	SerialWake      bool
	SpuriousRetries int // re-arms allowed per phase after unwanted wakes
}

func DefaultConfig() Config {
	return Config{
		LightSleep:      5 * time.Second,
		MinDeepSleep:    2 * time.Second,
		MaxLightSleep:   time.Minute,
		MaxDeepSleep:    24 * time.Hour,
		SerialWake:      true,
		SpuriousRetries: 16,
	}
}

type Dispatcher struct {
	cfg     Config
	sleeper Sleeper
	flags   *irq.Flags
	notify  func()
}

// NewDispatcher builds a dispatcher. notify is called whenever an interrupt
// wakes the device during a wait that may not be interrupted, so an operator
// can see it is awake but busy.
func NewDispatcher(cfg Config, sleeper Sleeper, flags *irq.Flags, notify func()) *Dispatcher {
	if notify == nil {
		notify = func() {}
	}
	if cfg.MaxLightSleep <= 0 {
		cfg.MaxLightSleep = time.Minute
	}
	if cfg.MaxDeepSleep <= 0 {
		cfg.MaxDeepSleep = 24 * time.Hour
	}
	return &Dispatcher{cfg: cfg, sleeper: sleeper, flags: flags, notify: notify}
}

// Hibernate waits for dur. With allowInterrupts any pending IRQ ends the wait;
// without it the wait runs to the end and unrelated wakes are retried. It
// never clears IRQ flags, so anything raised is seen by the caller.
func (d *Dispatcher) Hibernate(ctx context.Context, dur time.Duration, allowInterrupts bool) {
	if dur <= 0 {
		return
	}
	d.flags.DrainWake()
	if d.flags.Pending() {
		logger.Debugf("Not hibernating, IRQs pending [%v]", d.flags.Snapshot())
		return
	}

	light := dur
	if dur > d.cfg.LightSleep+d.cfg.MinDeepSleep {
		if d.cfg.SerialWake {
			light = d.cfg.LightSleep
		} else {
			light = 0
		}
	}

	remaining := dur
	if light > 0 {
		logger.Debugf("Sleeping lightly [%v]", light)
		if !d.phase(ctx, Light, light, allowInterrupts) {
			d.done()
			return
		}
		remaining -= light
	}
	if remaining > 0 {
		logger.Debugf("Sleeping deeply [%v]", remaining)
		d.phase(ctx, Deep, remaining, allowInterrupts)
	}
	d.done()
}

func (d *Dispatcher) done() {
	if s := d.flags.Snapshot(); s != 0 {
		logger.Debugf("Hibernation ending with IRQs [%v]", s)
	}
}

// phase sleeps total at one depth in alarm-sized slices. It returns false if
// the wait ended early.
func (d *Dispatcher) phase(ctx context.Context, depth Depth, total time.Duration, allowInterrupts bool) bool {
	limit := d.cfg.MaxLightSleep
	if depth == Deep {
		limit = d.cfg.MaxDeepSleep
	}
	retries := 0
	for total > 0 {
		if allowInterrupts && d.flags.Pending() {
			return false
		}
		slice := total
		if slice > limit {
			slice = limit
		}

		wake, slept := d.sleeper.Sleep(ctx, depth, slice)
		if wake == WakeAlarm || slept > slice {
			slept = slice
		}
		total -= slept
		metrics.Prom_sleepSeconds.WithLabelValues(depth.String()).Add(slept.Seconds())

		switch wake {
		case WakeCancelled:
			return false
		case WakeInterrupt:
			if allowInterrupts && d.flags.Pending() {
				return false
			}
			metrics.Prom_spuriousWakes.Inc()
			retries++
			if retries > d.cfg.SpuriousRetries {
				logger.Warnf("Giving up %v sleep after [%v] unwanted wakes, [%v] left", depth, retries-1, total)
				return false
			}
			if !allowInterrupts {
				logger.Warnf("Woken during an uninterruptible wait, [%v] left", total)
				d.notify()
			}
			d.flags.DrainWake()
		}
	}
	return true
}
