package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gr-butler/envmon/config"
	"github.com/gr-butler/envmon/datalog"
	"github.com/gr-butler/envmon/metrics"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

/*
 * Controllers drive the actuators (pumps, aerators). The scheduler only stores
 * what they return, it never interprets it.
 */

var ErrNoPin = errors.New("controller pin not found")

// Result of one controller check. Code is free for the controller to use and
// is written into the log line.
type Result struct {
	Code int32
	Err  error
	// Idle is set when the controller decided there was nothing to do.
	Idle bool
}

type Controller interface {
	Name() string
	Run(ctx context.Context) Result
}

// Waiter is how a controller waits while an actuator is on. The power
// dispatcher satisfies it.
type Waiter interface {
	Hibernate(ctx context.Context, d time.Duration, allowInterrupts bool)
}

// Condition decides whether a controller should actuate on this check.
type Condition func() (bool, error)

// Source is anything holding a last reading, such as a sensor.
type Source interface {
	Reading() datalog.Reading
}

// Below holds while the sensor's last valid reading is under limit. An
// invalid reading is an error rather than a reason to run.
func Below(s Source, limit int32) Condition {
	return func() (bool, error) {
		r := s.Reading()
		if !r.Valid {
			return false, errors.New("sensor has no reading yet")
		}
		return r.Value < limit, nil
	}
}

// Timed switches a GPIO output on for a fixed time on every check.
type Timed struct {
	name      string
	pin       gpio.PinOut
	run       time.Duration
	activeLow bool
	wait      Waiter
	Condition Condition
	runs      int32
}

func NewTimed(name string, pin gpio.PinOut, run time.Duration, activeLow bool, wait Waiter) (*Timed, error) {
	if pin == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoPin)
	}
	t := &Timed{name: name, pin: pin, run: run, activeLow: activeLow, wait: wait}
	if err := t.set(false); err != nil {
		return nil, fmt.Errorf("%s: failed to initialise pin: %w", name, err)
	}
	return t, nil
}

func (t *Timed) Name() string {
	return t.name
}

// Runs is how many times the actuator has been switched on.
func (t *Timed) Runs() int32 {
	return t.runs
}

func (t *Timed) set(on bool) error {
	l := gpio.Level(on != t.activeLow)
	return t.pin.Out(l)
}

func (t *Timed) Run(ctx context.Context) Result {
	if t.Condition != nil {
		ok, err := t.Condition()
		if err != nil {
			logger.Warnf("Controller [%v] condition failed [%v]", t.name, err)
			metrics.Prom_controllerRuns.WithLabelValues(t.name, "error").Inc()
			return Result{Code: t.runs, Err: err}
		}
		if !ok {
			logger.Debugf("Controller [%v] condition not met", t.name)
			metrics.Prom_controllerRuns.WithLabelValues(t.name, "idle").Inc()
			return Result{Code: t.runs, Idle: true}
		}
	}

	if err := t.set(true); err != nil {
		metrics.Prom_controllerRuns.WithLabelValues(t.name, "error").Inc()
		return Result{Code: t.runs, Err: fmt.Errorf("%s on: %w", t.name, err)}
	}
	logger.Infof("Controller [%v] on for [%v]", t.name, t.run)
	t.wait.Hibernate(ctx, t.run, false)

	// always try to switch off, even when cancelled
	if err := t.set(false); err != nil {
		metrics.Prom_controllerRuns.WithLabelValues(t.name, "error").Inc()
		return Result{Code: t.runs, Err: fmt.Errorf("%s off: %w", t.name, err)}
	}
	t.runs++
	logger.Infof("Controller [%v] off, runs [%v]", t.name, t.runs)
	metrics.Prom_controllerRuns.WithLabelValues(t.name, "ok").Inc()
	return Result{Code: t.runs}
}

// PinByName resolves a pin name. Tests replace it.
type PinByName func(name string) gpio.PinIO

// FromConfig builds one timed controller per entry. sensorByName resolves the
// optional threshold sensor.
func FromConfig(cfgs []config.Controller, pins PinByName, sensorByName func(string) Source, wait Waiter) ([]Controller, error) {
	if pins == nil {
		pins = gpioreg.ByName
	}
	var out []Controller
	for _, c := range cfgs {
		p := pins(c.Pin)
		if p == nil {
			return nil, fmt.Errorf("%s: pin %q: %w", c.Name, c.Pin, ErrNoPin)
		}
		t, err := NewTimed(c.Name, p, time.Duration(c.RunSeconds)*time.Second, c.ActiveLow, wait)
		if err != nil {
			return nil, err
		}
		if c.Sensor != "" && c.Below != nil {
			s := sensorByName(c.Sensor)
			if s == nil {
				return nil, fmt.Errorf("%s: unknown sensor %q", c.Name, c.Sensor)
			}
			t.Condition = Below(s, *c.Below)
		}
		logger.Infof("Controller [%v] on pin [%v] run [%vs]", c.Name, c.Pin, c.RunSeconds)
		out = append(out, t)
	}
	return out, nil
}
