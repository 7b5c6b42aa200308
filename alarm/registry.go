package alarm

// Slot is the deadline of one registered task.
type Slot struct {
	Name     string
	Schedule Schedule
	Deadline Deadline
	LastRun  uint64
}

// Registry holds one slot per task. Registration order is priority order and
// is only used to break ties when picking the next wakeup.
type Registry struct {
	slots []Slot
}

func NewRegistry(capacity int) *Registry {
	return &Registry{slots: make([]Slot, 0, capacity)}
}

// Register adds a task and returns its slot index.
func (r *Registry) Register(name string, s Schedule) int {
	r.slots = append(r.slots, Slot{Name: name, Schedule: s})
	return len(r.slots) - 1
}

func (r *Registry) Len() int {
	return len(r.slots)
}

func (r *Registry) Slot(i int) *Slot {
	return &r.slots[i]
}

// Due reports whether slot i has a deadline at or before now.
func (r *Registry) Due(i int, now uint64) bool {
	d := r.slots[i].Deadline
	return d.IsSet() && uint64(d) <= now
}

// Take zeroes slot i before its work runs. It returns how late the task is and
// whether it is late by more than one interval, i.e. an alarm was missed.
func (r *Registry) Take(i int, now uint64) (late uint64, missed bool) {
	s := &r.slots[i]
	d := uint64(s.Deadline)
	s.Deadline = 0
	s.LastRun = now
	if d == 0 || d >= now {
		return 0, false
	}
	late = now - d
	iv := s.Schedule.Interval()
	return late, iv > 0 && late > iv
}

// Recompute fills every zero deadline. With force every deadline is recomputed,
// for instance after the wall clock was set.
//
// A task's next deadline is never computed from before its last run, so a
// clock pulled back by a drift correction cannot make it due again on the
// boundary it has just run on.
func (r *Registry) Recompute(now uint64, force bool) {
	for i := range r.slots {
		s := &r.slots[i]
		if force {
			s.LastRun = 0
		} else if s.Deadline.IsSet() {
			continue
		}
		from := now
		if s.LastRun > from {
			from = s.LastRun
		}
		s.Deadline = s.Schedule.Next(from, s.LastRun)
	}
}

// Wakeup is the next time the loop has to be awake and the task responsible.
type Wakeup struct {
	At    uint64
	Cause string
}

// CauseCeiling labels a wakeup that no task asked for.
const CauseCeiling = "ceiling"

// Wait returns the seconds left until the wakeup, 0 if it is due.
func (w Wakeup) Wait(now uint64) uint64 {
	if w.At <= now {
		return 0
	}
	return w.At - now
}

// NextWakeup returns the earliest set deadline, never later than now+ceiling
// and never earlier than now.
func (r *Registry) NextWakeup(now, ceiling uint64) Wakeup {
	w := Wakeup{At: now + ceiling, Cause: CauseCeiling}
	for i := range r.slots {
		d := uint64(r.slots[i].Deadline)
		if d != 0 && d < w.At {
			w.At = d
			w.Cause = r.slots[i].Name
		}
	}
	if w.At < now {
		w.At = now
	}
	return w
}
