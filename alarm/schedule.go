package alarm

import "fmt"

// Deadline is the wall-clock second a task becomes due. Zero means unset.
type Deadline uint64

func (d Deadline) IsSet() bool {
	return d != 0
}

type Kind int

const (
	Manual Kind = iota
	Periodic
	TimeOfDay
	DriftCorrection
)

func (k Kind) String() string {
	switch k {
	case Manual:
		return "manual"
	case Periodic:
		return "periodic"
	case TimeOfDay:
		return "time-of-day"
	case DriftCorrection:
		return "drift-correction"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Schedule is the read-only timing configuration of one task.
type Schedule struct {
	Kind        Kind
	Period      uint64 // seconds, Periodic and DriftCorrection
	MinuteOfDay uint32
	Skew        uint32 // minutes of lateness tolerated by TimeOfDay
	Correction  int64  // seconds applied by DriftCorrection
}

// Every runs a task every minutes, grid aligned. Zero gives a manual-only task.
func Every(minutes uint32) Schedule {
	if minutes == 0 {
		return Schedule{Kind: Manual}
	}
	return Schedule{Kind: Periodic, Period: uint64(minutes) * Minute}
}

// At runs a task once a day at minuteOfDay.
func At(minuteOfDay, skew uint32) Schedule {
	return Schedule{Kind: TimeOfDay, MinuteOfDay: minuteOfDay, Skew: skew}
}

// Drift applies seconds to the clock every periodMinutes. Disabled (manual) if
// either is zero.
func Drift(periodMinutes uint32, seconds int64) Schedule {
	if periodMinutes == 0 || seconds == 0 {
		return Schedule{Kind: Manual}
	}
	return Schedule{Kind: DriftCorrection, Period: uint64(periodMinutes) * Minute, Correction: seconds}
}

func (s Schedule) IsManual() bool {
	return s.Kind == Manual
}

// Interval is the nominal time between runs, used to spot missed alarms.
func (s Schedule) Interval() uint64 {
	switch s.Kind {
	case Periodic, DriftCorrection:
		return s.Period
	case TimeOfDay:
		return Day
	default:
		return 0
	}
}

// Next computes the deadline following now. lastRun keeps a time-of-day task
// from being rescheduled inside the skew window it has just run in.
func (s Schedule) Next(now, lastRun uint64) Deadline {
	switch s.Kind {
	case Periodic:
		return Deadline(NextPeriodic(now, s.Period))
	case TimeOfDay:
		next := NextTimeOfDay(now, s.MinuteOfDay, s.Skew)
		if lastRun != 0 && next <= lastRun {
			next += Day
		}
		return Deadline(next)
	case DriftCorrection:
		return Deadline(NextDriftCorrection(now, s.Period, s.Correction))
	default:
		return 0
	}
}

func (s Schedule) String() string {
	switch s.Kind {
	case Periodic:
		return fmt.Sprintf("every %vm", s.Period/Minute)
	case TimeOfDay:
		return fmt.Sprintf("at %02d:%02d (skew %vm)", s.MinuteOfDay/60, s.MinuteOfDay%60, s.Skew)
	case DriftCorrection:
		return fmt.Sprintf("%+ds every %vm", s.Correction, s.Period/Minute)
	default:
		return "manual"
	}
}
