package alarm

// Wall-clock units, in seconds since the epoch as kept by the RTC.
const (
	Minute uint64 = 60
	Hour          = 60 * Minute
	Day           = 24 * Hour
)

// DayStart returns midnight of the day containing now.
func DayStart(now uint64) uint64 {
	return (now / Day) * Day
}

// NextPeriodic returns the smallest multiple of period strictly greater than now,
// so every task sharing a period fires on the same wall-clock boundaries.
// A zero period is a manual-only task and gives 0.
func NextPeriodic(now, period uint64) uint64 {
	if period == 0 {
		return 0
	}
	return (now/period + 1) * period
}

// NextTimeOfDay returns today's minuteOffset unless it passed more than skew
// minutes ago, in which case it returns the same time tomorrow. A result at or
// before now means "due now".
func NextTimeOfDay(now uint64, minuteOffset, skew uint32) uint64 {
	candidate := DayStart(now) + uint64(minuteOffset)*Minute
	if candidate+uint64(skew)*Minute < now {
		return candidate + Day
	}
	return candidate
}

// NextDriftCorrection is NextPeriodic, except that a negative correction which
// would pull the clock back to or before now is deferred one extra period.
// Otherwise the same correction would become due again as soon as it was applied.
func NextDriftCorrection(now, period uint64, correction int64) uint64 {
	base := NextPeriodic(now, period)
	if base == 0 {
		return 0
	}
	if correction < 0 && base <= now+uint64(-correction) {
		return base + period
	}
	return base
}
