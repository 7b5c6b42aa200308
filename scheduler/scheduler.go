// Package scheduler is the main dispatch loop. Each step computes the next
// wakeup, sleeps until it, drains the interrupt flags, runs whatever is due and
// recomputes the deadlines that were used up.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gr-butler/envmon/alarm"
	"github.com/gr-butler/envmon/config"
	"github.com/gr-butler/envmon/console"
	"github.com/gr-butler/envmon/controllers"
	"github.com/gr-butler/envmon/datalog"
	"github.com/gr-butler/envmon/irq"
	"github.com/gr-butler/envmon/metrics"
	logger "github.com/sirupsen/logrus"
)

// Clock is the wall clock the deadlines are measured against.
type Clock interface {
	Now() uint64
	Set(seconds uint64)
	Adjust(delta int64)
}

type Sleeper interface {
	Hibernate(ctx context.Context, d time.Duration, allowInterrupts bool)
}

type Indicator interface {
	Flash(count int, d time.Duration)
}

// Button measures a press in hold increments.
type Button interface {
	Count() int
}

// Rearmer re-enables the button interrupt once a press has been handled.
type Rearmer interface {
	Rearm()
}

type Sensors interface {
	Check() datalog.Warning
	Readings(dst []datalog.Reading) []datalog.Reading
	Len() int
}

type Log interface {
	Append(ctx context.Context, snap *datalog.Snapshot, force bool) error
	Buffered() int
}

type Console interface {
	Session(h console.Handler) int
}

const defaultCeiling = 12 * alarm.Hour

// Task is a controller and when it should be checked.
type Task struct {
	Controller controllers.Controller
	Schedule   alarm.Schedule
}

// Deps are the collaborators the loop drives. Button, Watcher and Console may
// be nil.
type Deps struct {
	Clock       Clock
	Sleeper     Sleeper
	Flags       *irq.Flags
	Indicator   Indicator
	Button      Button
	Watcher     Rearmer
	Console     Console
	Sensors     Sensors
	Log         Log
	Controllers []Task
	// Warnings is shared with the log so its failures show up in the lines.
	Warnings *datalog.Warning
	// Pause is used between indicator patterns. Defaults to time.Sleep.
	Pause func(time.Duration)
}

type controllerState struct {
	ctrl        controllers.Controller
	slot        int
	initialized bool
	err         bool
	skipped     bool
	code        int32
}

func (c *controllerState) reading() datalog.Reading {
	return datalog.Reading{Value: c.code, Valid: c.initialized, Error: c.err || c.skipped}
}

type Scheduler struct {
	Deps
	cfg     config.Schedule
	ceiling uint64
	reg     *alarm.Registry

	logSlot    int
	statusSlot int
	coarseSlot int
	fineSlot   int
	ctrls      []controllerState

	snap datalog.Snapshot

	mu    sync.Mutex
	state State
}

// ControllerSchedule turns a controller's configuration into its schedule. A
// zero schedule falls back to the default controller period.
func ControllerSchedule(c config.Controller, defaultMinutes uint32) alarm.Schedule {
	switch {
	case c.ScheduleMinutes == 0:
		return alarm.Every(defaultMinutes)
	case c.TimeOfDay:
		return alarm.At(c.ScheduleMinutes, c.SkewMinutes)
	default:
		return alarm.Every(c.ScheduleMinutes)
	}
}

func New(cfg config.Schedule, d Deps) *Scheduler {
	if d.Warnings == nil {
		d.Warnings = new(datalog.Warning)
	}
	if d.Pause == nil {
		d.Pause = time.Sleep
	}
	s := &Scheduler{
		Deps:    d,
		cfg:     cfg,
		ceiling: uint64(cfg.MaxSleepHours) * alarm.Hour,
		reg:     alarm.NewRegistry(4 + len(d.Controllers)),
	}
	if s.ceiling == 0 {
		s.ceiling = defaultCeiling
	}

	// registration order is the tie-break order
	s.logSlot = s.reg.Register("log", alarm.Every(cfg.LogPeriodMinutes))
	s.statusSlot = s.reg.Register("status", alarm.Every(cfg.StatusPeriodMinutes))
	s.coarseSlot = s.reg.Register("coarse-drift", alarm.Drift(cfg.ClockCorrection.Coarse.PeriodMinutes, cfg.ClockCorrection.Coarse.Seconds))
	s.fineSlot = s.reg.Register("fine-drift", alarm.Drift(cfg.ClockCorrection.Fine.PeriodMinutes, cfg.ClockCorrection.Fine.Seconds))
	s.ctrls = make([]controllerState, len(d.Controllers))
	for i, t := range d.Controllers {
		s.ctrls[i] = controllerState{ctrl: t.Controller, slot: s.reg.Register(t.Controller.Name(), t.Schedule)}
	}

	s.snap.Sensors = make([]datalog.Reading, 0, d.Sensors.Len())
	s.snap.Controllers = make([]datalog.Reading, 0, len(s.ctrls))

	for i := 0; i < s.reg.Len(); i++ {
		sl := s.reg.Slot(i)
		logger.Infof("Task [%v] schedule [%v]", sl.Name, sl.Schedule)
	}
	s.reg.Recompute(s.Clock.Now(), false)
	s.publish(alarm.Wakeup{})
	return s
}

// Run steps the loop until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Infof("Starting dispatch loop, [%v] tasks", s.reg.Len())
	for ctx.Err() == nil {
		s.Step(ctx)
	}
	logger.Info("Dispatch loop stopped")
	return ctx.Err()
}

// forced is the work a button action asked for on top of what is due.
type forced struct {
	status         bool
	log            bool
	sync           bool
	controllers    bool // manual-only controllers
	allControllers bool
}

// Step runs one pass of the loop.
func (s *Scheduler) Step(ctx context.Context) {
	now := s.Clock.Now()
	w := s.reg.NextWakeup(now, s.ceiling)
	if wait := w.Wait(now); wait > 0 && !s.Flags.Pending() {
		logger.Debugf("Sleeping [%vs] for [%v]", wait, w.Cause)
		s.Sleeper.Hibernate(ctx, time.Duration(wait)*time.Second, true)
	} else {
		metrics.Prom_sleepSkipped.Inc()
	}
	metrics.Prom_wakeups.WithLabelValues(w.Cause).Inc()

	f := s.drainIRQs(ctx)
	s.runDue(ctx, f)
	s.reg.Recompute(s.Clock.Now(), false)
	s.publish(s.reg.NextWakeup(s.Clock.Now(), s.ceiling))
}

const handled = irq.Button | irq.Serial

func (s *Scheduler) drainIRQs(ctx context.Context) forced {
	var f forced
	pending := s.Flags.Snapshot()
	if pending == 0 {
		return f
	}
	logger.Debugf("Handling IRQs [%v]", pending)

	if pending&irq.Button != 0 {
		s.Flags.Clear(irq.Button)
		f = s.handleButton()
		if s.Watcher != nil {
			s.Watcher.Rearm()
		}
	}
	if pending&irq.Serial != 0 {
		s.Flags.Clear(irq.Serial)
		s.handleSerial(ctx)
	}
	if left := pending &^ handled; left != 0 {
		logger.Warnf("Uncleared IRQ(s) [%v]", left)
		metrics.Prom_irqAnomalies.Inc()
		s.Flags.Clear(left)
	}
	return f
}

func (s *Scheduler) handleSerial(ctx context.Context) {
	if s.Console == nil {
		return
	}
	before := s.Clock.Now()
	n := s.Console.Session(&session{s: s, ctx: ctx})
	after := s.Clock.Now()
	logger.Debugf("Console session handled [%v] commands", n)

	// the clock was probably set
	if after < before || after-before > alarm.Hour {
		logger.Infof("Wall clock moved [%v] -> [%v], resetting alarms", before, after)
		s.reg.Recompute(after, true)
	}
}

// take zeroes a task's deadline before its work runs and flags a missed alarm.
func (s *Scheduler) take(slot int, now uint64) {
	late, missed := s.reg.Take(slot, now)
	if missed {
		name := s.reg.Slot(slot).Name
		logger.Warnf("Missed alarm for [%v], [%vs] late", name, late)
		metrics.Prom_missedAlarms.WithLabelValues(name).Inc()
		*s.Warnings |= datalog.WarnMissedAlarm
	}
}

func (s *Scheduler) runDue(ctx context.Context, f forced) {
	now := s.Clock.Now()

	if f.status || s.reg.Due(s.statusSlot, now) {
		s.take(s.statusSlot, now)
		s.checkStatus()
	}
	if f.log || s.reg.Due(s.logSlot, now) {
		s.take(s.logSlot, now)
		s.appendLog(ctx, f.sync)
	}
	for _, slot := range []int{s.coarseSlot, s.fineSlot} {
		if s.reg.Due(slot, now) {
			s.take(slot, now)
			s.correctDrift(slot)
		}
	}
	for i := range s.ctrls {
		c := &s.ctrls[i]
		manual := s.reg.Slot(c.slot).Schedule.IsManual()
		if f.allControllers || (f.controllers && manual) || s.reg.Due(c.slot, now) {
			s.take(c.slot, s.Clock.Now())
			s.runController(ctx, c, f.allControllers)
		}
	}
	metrics.Prom_warnings.Set(float64(*s.Warnings))
}

func (s *Scheduler) correctDrift(slot int) {
	sc := s.reg.Slot(slot).Schedule
	logger.Infof("Applying [%+d]s clock correction", sc.Correction)
	s.Clock.Adjust(sc.Correction)
}

func (s *Scheduler) runController(ctx context.Context, c *controllerState, force bool) {
	name := c.ctrl.Name()
	if !force && s.Warnings.Has(datalog.PowerWarnings) {
		logger.Warnf("Skipping controller [%v]; low power", name)
		metrics.Prom_controllerRuns.WithLabelValues(name, "skipped").Inc()
		c.skipped = true
		s.refreshControllerWarnings()
		return
	}
	r := c.ctrl.Run(ctx)
	c.initialized = true
	c.skipped = false
	c.code = r.Code
	c.err = r.Err != nil
	if r.Err != nil {
		logger.Errorf("Controller [%v] failed [%v]", name, r.Err)
	}
	s.refreshControllerWarnings()
}

func (s *Scheduler) refreshControllerWarnings() {
	var w datalog.Warning
	for i := range s.ctrls {
		if s.ctrls[i].err || s.ctrls[i].skipped {
			w |= datalog.WarnController
		}
		if s.ctrls[i].skipped {
			w |= datalog.WarnControllerSkipped
		}
	}
	*s.Warnings = *s.Warnings&^(datalog.WarnController|datalog.WarnControllerSkipped) | w
}

// capture fills the reusable snapshot with the current state.
func (s *Scheduler) capture() *datalog.Snapshot {
	s.snap.Time = s.Clock.Now()
	s.snap.Warnings = *s.Warnings
	s.snap.Sensors = s.Sensors.Readings(s.snap.Sensors[:0])
	s.snap.Controllers = s.snap.Controllers[:0]
	for i := range s.ctrls {
		s.snap.Controllers = append(s.snap.Controllers, s.ctrls[i].reading())
	}
	return &s.snap
}
