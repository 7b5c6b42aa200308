package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/goburrow/serial"
	"github.com/gr-butler/envmon/irq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	in  []string // one chunk per Read
	err []error
	out bytes.Buffer
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.in) == 0 {
		return 0, errors.New("unexpected read")
	}
	chunk, err := p.in[0], p.err[0]
	p.in, p.err = p.in[1:], p.err[1:]
	return copy(b, chunk), err
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

type fakeHandler struct {
	now      uint64
	flushErr error
	flushes  int
}

func (h *fakeHandler) Status() string   { return "OK 215" }
func (h *fakeHandler) Flush() error     { h.flushes++; return h.flushErr }
func (h *fakeHandler) Now() uint64      { return h.now }
func (h *fakeHandler) SetTime(s uint64) { h.now = s }
func (h *fakeHandler) Alarms() []string { return []string{"log 900", "status 3600"} }

func TestRunQueuesLinesAndRaisesSerial(t *testing.T) {
	port := &fakePort{
		in:  []string{"sta", "tus\r\nti", "", "me 1700000000\n", "alarms"},
		err: []error{nil, nil, serial.ErrTimeout, nil, io.EOF},
	}

	flags := irq.NewFlags()
	c := New(port, flags)
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, irq.Serial, flags.Snapshot())

	h := &fakeHandler{}
	assert.Equal(t, 3, c.Session(h))
	assert.Equal(t, uint64(1700000000), h.now)

	out := port.out.String()
	assert.Contains(t, out, "OK 215\r\n")
	assert.Contains(t, out, "ok\r\n")
	assert.Contains(t, out, "status 3600\r\n")

	// nothing left
	assert.Zero(t, c.Session(h))
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("gone")
	port := &fakePort{in: []string{""}, err: []error{boom}}
	c := New(port, irq.NewFlags())
	assert.ErrorIs(t, c.Run(context.Background()), boom)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(&fakePort{}, irq.NewFlags())
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}

func TestSessionCommands(t *testing.T) {
	port := &fakePort{}
	c := New(port, irq.NewFlags())
	h := &fakeHandler{now: 42, flushErr: errors.New("card missing")}

	for _, l := range []string{"time", "time soon", "flush", "HELP", "dance"} {
		c.queue(l)
	}
	assert.Equal(t, 5, c.Session(h))
	assert.Equal(t, 1, h.flushes)
	assert.Equal(t, uint64(42), h.now)

	out := port.out.String()
	assert.True(t, strings.HasPrefix(out, "42\r\n"))
	assert.Contains(t, out, "bad time [soon]")
	assert.Contains(t, out, "flush failed: card missing")
	assert.Contains(t, out, "time [unix]")
	assert.Contains(t, out, "unknown command [dance]")
}

func TestQueueDropsWhenFull(t *testing.T) {
	c := New(&fakePort{}, irq.NewFlags())
	for i := 0; i < maxQueued+3; i++ {
		c.queue("status")
	}
	assert.Equal(t, maxQueued, c.Session(&fakeHandler{}))
}
