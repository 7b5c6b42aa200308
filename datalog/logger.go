// Package datalog records status snapshots to one or more sinks.
//
// Snapshots are held in a fixed ring and written out in batches; storage is
// only powered while a batch is written. If storage is unavailable the ring
// keeps the newest lines and the oldest are lost.
package datalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/gr-butler/envmon/buffer"
	"github.com/gr-butler/envmon/metrics"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrLowVoltage = errors.New("log sync skipped, low voltage")
	ErrNoSinks    = errors.New("no log sink available")
)

// Sink is somewhere log lines go. Sinks are opened for each batch and closed
// after it. A mandatory sink that fails aborts the batch; an optional one is
// dropped from it with a warning.
type Sink interface {
	Name() string
	Mandatory() bool
	Open(ctx context.Context, h *Header) error
	WriteLine(ctx context.Context, s *Snapshot, line string) error
	Close() error
}

type Logger struct {
	ring   *buffer.Ring[Snapshot]
	sinks  []Sink
	header Header
	warn   *Warning
}

// NewLogger allocates a ring of capacity snapshots sized for the columns in
// h. Warning bits for log failures are set in warn.
//
// Mandatory sinks are written before optional ones, so a line that fails on a
// mandatory sink has not reached an optional sink and is not repeated there
// when it is retried. Mandatory sinks that did take it will see it again.
func NewLogger(capacity int, h Header, warn *Warning, sinks ...Sink) *Logger {
	if h.BootID == "" {
		h.BootID = uuid.NewString()
	}
	sinks = append([]Sink(nil), sinks...)
	sort.SliceStable(sinks, func(i, j int) bool {
		return sinks[i].Mandatory() && !sinks[j].Mandatory()
	})
	ns, nc := len(h.Sensors), len(h.Controllers)
	l := &Logger{
		ring: buffer.NewRing(capacity, func(s *Snapshot) {
			s.Sensors = make([]Reading, 0, ns)
			s.Controllers = make([]Reading, 0, nc)
		}),
		sinks:  sinks,
		header: h,
		warn:   warn,
	}
	logger.Infof("Log buffer [%v] lines, boot id [%v]", capacity, h.BootID)
	for _, s := range sinks {
		logger.Infof("Log sink [%v] mandatory [%v]", s.Name(), s.Mandatory())
	}
	return l
}

func (l *Logger) Header() *Header {
	return &l.header
}

// Buffered returns the number of lines waiting to be written.
func (l *Logger) Buffered() int {
	return l.ring.Len()
}

// Each visits buffered lines oldest first.
func (l *Logger) Each(fn func(*Snapshot) bool) {
	l.ring.Each(fn)
}

// Append records snap. Unless force is set the line is only buffered until the
// ring is full, then the whole ring plus snap is written. A forced flush writes
// whatever is buffered and does not add snap, so the lines stay evenly spaced.
func (l *Logger) Append(ctx context.Context, snap *Snapshot, force bool) error {
	defer func() { metrics.Prom_bufferedLines.Set(float64(l.ring.Len())) }()

	if !force && l.ring.Cap() > 0 && !l.ring.Full() {
		logger.Debug("Buffering log line")
		l.buffer(snap)
		return nil
	}
	if !force && snap.Warnings.Has(PowerWarnings) {
		logger.Info("Skipping log sync; low voltage")
		*l.warn |= WarnLogSkipped
		l.buffer(snap)
		return ErrLowVoltage
	}
	*l.warn &^= WarnLogSkipped

	if force {
		snap = nil
	}
	partial, err := l.flush(ctx, snap)
	if err != nil {
		*l.warn |= WarnLogError
		if snap != nil {
			l.buffer(snap)
		}
		return err
	}
	if partial {
		*l.warn |= WarnLogError
	} else {
		*l.warn &^= WarnLogError
	}
	return nil
}

func (l *Logger) buffer(s *Snapshot) {
	slot, overwrote := l.ring.Next()
	if slot == nil {
		logger.Warn("No log buffer, line lost")
		metrics.Prom_droppedLines.Inc()
		return
	}
	if overwrote {
		logger.Debug("Log buffer full, oldest line lost")
		metrics.Prom_droppedLines.Inc()
	}
	slot.copyFrom(s)
}

// flush writes the ring oldest first followed by extra, if any. Lines are only
// dropped from the ring once written. partial is set when an optional sink
// failed along the way.
func (l *Logger) flush(ctx context.Context, extra *Snapshot) (partial bool, err error) {
	open, partial, err := l.open(ctx)
	if err != nil {
		return partial, err
	}
	defer func() {
		for _, s := range open {
			if cerr := s.Close(); cerr != nil {
				logger.Errorf("Failed to close log sink [%v] [%v]", s.Name(), cerr)
				metrics.Prom_sinkFailures.WithLabelValues(s.Name()).Inc()
				partial = true
			}
		}
	}()

	written := 0
	for !l.ring.Empty() {
		s := l.ring.Oldest()
		if err = l.write(ctx, &open, &partial, s); err != nil {
			logger.Errorf("Log sync stopped with [%v] lines left [%v]", l.ring.Len(), err)
			return partial, err
		}
		l.ring.Drop()
		written++
	}
	if extra != nil {
		if err = l.write(ctx, &open, &partial, extra); err != nil {
			return partial, err
		}
		written++
	}
	logger.Infof("Wrote [%v] log lines", written)
	return partial, nil
}

func (l *Logger) open(ctx context.Context) ([]Sink, bool, error) {
	open := make([]Sink, 0, len(l.sinks))
	partial := false
	for _, s := range l.sinks {
		if err := s.Open(ctx, &l.header); err != nil {
			metrics.Prom_sinkFailures.WithLabelValues(s.Name()).Inc()
			if s.Mandatory() {
				logger.Errorf("Skipping log sync, [%v] unavailable [%v]", s.Name(), err)
				for _, o := range open {
					_ = o.Close()
				}
				return nil, partial, fmt.Errorf("open %v: %w", s.Name(), err)
			}
			logger.Warnf("Log sink [%v] unavailable [%v]", s.Name(), err)
			partial = true
			continue
		}
		open = append(open, s)
	}
	if len(open) == 0 {
		return nil, partial, ErrNoSinks
	}
	return open, partial, nil
}

// write sends one line to every open sink, dropping optional sinks that fail.
func (l *Logger) write(ctx context.Context, open *[]Sink, partial *bool, s *Snapshot) error {
	line := FormatLine(s)
	kept := (*open)[:0]
	var failed error
	for i, sink := range *open {
		if failed != nil {
			kept = append(kept, (*open)[i:]...)
			break
		}
		err := sink.WriteLine(ctx, s, line)
		if err == nil {
			kept = append(kept, sink)
			continue
		}
		metrics.Prom_sinkFailures.WithLabelValues(sink.Name()).Inc()
		if sink.Mandatory() {
			failed = fmt.Errorf("write %v: %w", sink.Name(), err)
			kept = append(kept, sink)
			continue
		}
		logger.Warnf("Dropping log sink [%v] from this sync [%v]", sink.Name(), err)
		*partial = true
		_ = sink.Close()
	}
	*open = kept
	if failed != nil {
		return failed
	}
	if len(kept) == 0 {
		return ErrNoSinks
	}
	metrics.Prom_writtenLines.Inc()
	return nil
}
