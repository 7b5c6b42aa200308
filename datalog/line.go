package datalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// below this a timestamp is taken to be uptime, the clock was never set
const minDateSeconds = 3 * 365 * 24 * 60 * 60

// Reading is one sensor value or controller status at capture time.
type Reading struct {
	Value int32
	Valid bool
	Error bool
}

func (r Reading) String() string {
	if !r.Valid {
		return "(invalid)"
	}
	if r.Error {
		return "!" + strconv.FormatInt(int64(r.Value), 10)
	}
	return strconv.FormatInt(int64(r.Value), 10)
}

// Snapshot is one log line worth of state. Once captured it is not changed.
type Snapshot struct {
	Time        uint64
	Warnings    Warning
	Sensors     []Reading
	Controllers []Reading
}

// copyFrom fills s in place, reusing its slices.
func (s *Snapshot) copyFrom(o *Snapshot) {
	s.Time = o.Time
	s.Warnings = o.Warnings
	s.Sensors = append(s.Sensors[:0], o.Sensors...)
	s.Controllers = append(s.Controllers[:0], o.Controllers...)
}

// Column names one sensor in the log header. Monitored sensors can raise
// warnings and are marked with [!].
type Column struct {
	Name      string
	Monitored bool
}

type Header struct {
	BootID      string
	Sensors     []Column
	Controllers []string
}

// Lines returns the header lines written at the top of every new log file.
func (h *Header) Lines() []string {
	var b strings.Builder
	b.WriteString("# time\twarnings")
	for _, c := range h.Sensors {
		b.WriteByte('\t')
		if c.Monitored {
			b.WriteString("[!]")
		}
		b.WriteString(c.Name)
	}
	for _, c := range h.Controllers {
		b.WriteString("\t[!]")
		b.WriteString(c)
	}
	return []string{
		b.String(),
		WarningLegend,
		"# boot " + h.BootID,
	}
}

// FormatTime writes a date as "YYYY.MM.DD hh:mm". Small values are uptime and
// are written as hh:mm.
func FormatTime(t uint64) string {
	if t < minDateSeconds {
		return fmt.Sprintf("%02d:%02d", t/3600, (t%3600)/60)
	}
	return time.Unix(int64(t), 0).UTC().Format("2006.01.02 15:04")
}

// FormatLine renders s as a tab separated, CRLF terminated log line.
func FormatLine(s *Snapshot) string {
	var b strings.Builder
	b.WriteString(FormatTime(s.Time))
	b.WriteByte('\t')
	b.WriteString(s.Warnings.String())
	for _, r := range s.Sensors {
		b.WriteByte('\t')
		b.WriteString(r.String())
	}
	for _, r := range s.Controllers {
		b.WriteByte('\t')
		b.WriteString(r.String())
	}
	b.WriteString("\r\n")
	return b.String()
}
