package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gr-butler/envmon/alarm"
	"github.com/gr-butler/envmon/button"
	"github.com/gr-butler/envmon/datalog"
	"github.com/gr-butler/envmon/env"
	"github.com/gr-butler/envmon/metrics"
	logger "github.com/sirupsen/logrus"
)

func (s *Scheduler) handleButton() forced {
	n := 0
	if s.Button != nil {
		n = s.Button.Count()
	}
	a := button.Decode(n)
	logger.Infof("Button held [%v] increments, action [%v]", n, a)
	metrics.Prom_buttonActions.WithLabelValues(a.String()).Inc()
	ack := a.Ack()
	if ack.Count > 0 {
		s.Indicator.Flash(ack.Count, ack.Delay)
	}

	var f forced
	switch a {
	case button.QuickCheck:
		f.status = true
		f.controllers = s.cfg.ControllerPeriodMinutes == 0
		f.log = s.cfg.LogPeriodMinutes == 0
	case button.ForceLog:
		f.log = true
		f.sync = true
	case button.ForceControllers:
		f.allControllers = true
	case button.ResetClock:
		s.resetClock()
	case button.Cancel:
		logger.Info("Command cancelled")
	}
	return f
}

// resetClock sets the time of day to the configured offset, keeping the date,
// and recomputes every deadline.
func (s *Scheduler) resetClock() {
	now := s.Clock.Now()
	t := alarm.DayStart(now) + uint64(s.cfg.ResetTimeOffsetMinutes)*alarm.Minute
	logger.Infof("Setting system time to [%v]", datalog.FormatTime(t))
	s.Clock.Set(t)
	s.reg.Recompute(s.Clock.Now(), true)
}

func (s *Scheduler) checkStatus() {
	logger.Debug("Checking sensor status")
	w := s.Sensors.Check()
	*s.Warnings = *s.Warnings&^(datalog.PowerWarnings|datalog.WarnSensor) | w
	s.refreshControllerWarnings()
	s.showWarnings()
}

// showWarnings flashes one pattern per class of warning.
func (s *Scheduler) showWarnings() {
	patterns := s.Warnings.Patterns()
	if len(patterns) == 0 {
		return
	}
	logger.Infof("Warnings [%v]", *s.Warnings)
	s.Pause(env.DelayLong)
	for _, n := range patterns {
		s.Indicator.Flash(n, env.DelayErr)
		s.Pause(env.DelayLong)
	}
}

func (s *Scheduler) issueWarning() {
	s.Indicator.Flash(3, env.DelayErr)
}

func (s *Scheduler) appendLog(ctx context.Context, force bool) error {
	snap := s.capture()
	if !force {
		// captured in this line
		*s.Warnings &^= datalog.WarnMissedAlarm
	}
	err := s.Log.Append(ctx, snap, force)
	switch {
	case err == nil:
		if force {
			s.Indicator.Flash(1, env.DelayShort)
		}
	case errors.Is(err, datalog.ErrLowVoltage):
		logger.Infof("Log line buffered [%v]", err)
	default:
		logger.Errorf("Log sync failed [%v]", err)
		s.issueWarning()
	}
	return err
}

// session serves console commands from inside the loop.
type session struct {
	s   *Scheduler
	ctx context.Context
}

func (h *session) Status() string {
	snap := h.s.capture()
	return fmt.Sprintf("%s buffered [%d]", strings.TrimRight(datalog.FormatLine(snap), "\r\n"), h.s.Log.Buffered())
}

func (h *session) Flush() error {
	return h.s.appendLog(h.ctx, true)
}

func (h *session) Now() uint64 {
	return h.s.Clock.Now()
}

func (h *session) SetTime(seconds uint64) {
	h.s.Clock.Set(seconds)
}

func (h *session) Alarms() []string {
	out := make([]string, 0, h.s.reg.Len())
	for i := 0; i < h.s.reg.Len(); i++ {
		sl := h.s.reg.Slot(i)
		next := "unset"
		if sl.Deadline.IsSet() {
			next = datalog.FormatTime(uint64(sl.Deadline))
		}
		out = append(out, fmt.Sprintf("%-14s %-24v %s", sl.Name, sl.Schedule, next))
	}
	return out
}
