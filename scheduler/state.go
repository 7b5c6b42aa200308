package scheduler

import (
	"github.com/gr-butler/envmon/alarm"
	"github.com/gr-butler/envmon/datalog"
)

// State is a copy of what the loop last saw, safe to read from other
// goroutines such as the web handler.
type State struct {
	Time        string            `json:"time"`
	Warnings    string            `json:"warnings"`
	Sensors     []string          `json:"sensors"`
	Controllers []string          `json:"controllers"`
	Buffered    int               `json:"buffered_lines"`
	NextWakeup  string            `json:"next_wakeup,omitempty"`
	NextCause   string            `json:"next_cause,omitempty"`
	Deadlines   map[string]uint64 `json:"deadlines"`
}

func (s *Scheduler) publish(w alarm.Wakeup) {
	snap := s.capture()
	st := State{
		Time:        datalog.FormatTime(snap.Time),
		Warnings:    snap.Warnings.String(),
		Sensors:     make([]string, len(snap.Sensors)),
		Controllers: make([]string, len(snap.Controllers)),
		Buffered:    s.Log.Buffered(),
		NextCause:   w.Cause,
		Deadlines:   make(map[string]uint64, s.reg.Len()),
	}
	for i, r := range snap.Sensors {
		st.Sensors[i] = r.String()
	}
	for i, r := range snap.Controllers {
		st.Controllers[i] = r.String()
	}
	if w.At != 0 {
		st.NextWakeup = datalog.FormatTime(w.At)
	}
	for i := 0; i < s.reg.Len(); i++ {
		sl := s.reg.Slot(i)
		st.Deadlines[sl.Name] = uint64(sl.Deadline)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the state published after the last step.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
