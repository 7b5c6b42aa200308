package datalog

import (
	"context"
	"io"
)

// SerialSink mirrors lines to a live terminal. It never blocks a sync.
type SerialSink struct {
	w io.Writer
}

func NewSerialSink(w io.Writer) *SerialSink {
	return &SerialSink{w: w}
}

func (s *SerialSink) Name() string {
	return "serial"
}

func (s *SerialSink) Mandatory() bool {
	return false
}

func (s *SerialSink) Open(context.Context, *Header) error {
	return nil
}

func (s *SerialSink) WriteLine(_ context.Context, _ *Snapshot, line string) error {
	_, err := io.WriteString(s.w, line)
	return err
}

func (s *SerialSink) Close() error {
	return nil
}
