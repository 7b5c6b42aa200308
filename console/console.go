// Package console is the command surface on the serial line. A reader
// goroutine queues complete lines and raises the serial IRQ; the dispatch loop
// then runs a session that answers everything queued.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/serial"
	"github.com/gr-butler/envmon/irq"
	logger "github.com/sirupsen/logrus"
)

const (
	DefaultBaudRate = 115200
	readTimeout     = 500 * time.Millisecond
	maxQueued       = 16
	maxLine         = 256
)

// Handler carries out the commands.
type Handler interface {
	Status() string
	Flush() error
	Now() uint64
	SetTime(seconds uint64)
	Alarms() []string
}

type Console struct {
	port  io.ReadWriter
	flags *irq.Flags
	lines chan string
}

func New(port io.ReadWriter, flags *irq.Flags) *Console {
	return &Console{port: port, flags: flags, lines: make(chan string, maxQueued)}
}

// Open opens a serial device, 8N1. Reads time out so the reader can notice
// cancellation.
func Open(device string, baud int) (serial.Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	logger.Infof("Opening console [%v] at [%v] baud", device, baud)
	p, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open console %s: %w", device, err)
	}
	return p, nil
}

// Writer is the console output, shared with the serial log mirror.
func (c *Console) Writer() io.Writer {
	return c.port
}

// Run reads lines until ctx is done or the port reaches EOF. It only queues
// lines and raises the serial IRQ; it never answers them.
func (c *Console) Run(ctx context.Context) error {
	buf := make([]byte, 64)
	var pending []byte
	for ctx.Err() == nil {
		n, err := c.port.Read(buf)
		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			c.queue(string(bytes.TrimRight(pending[:i], "\r")))
			pending = pending[i+1:]
		}
		if len(pending) > maxLine {
			logger.Warnf("Console line too long, dropped [%v] bytes", len(pending))
			pending = pending[:0]
		}

		switch {
		case err == nil, errors.Is(err, serial.ErrTimeout):
		case errors.Is(err, io.EOF):
			if len(pending) > 0 {
				c.queue(string(pending))
			}
			return nil
		default:
			return err
		}
	}
	return ctx.Err()
}

func (c *Console) queue(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	select {
	case c.lines <- line:
	default:
		logger.Warnf("Console queue full, dropped [%v]", line)
	}
	c.flags.Raise(irq.Serial)
}

// Session answers every queued line and returns how many were handled.
func (c *Console) Session(h Handler) int {
	n := 0
	for {
		select {
		case line := <-c.lines:
			c.exec(h, line)
			n++
		default:
			return n
		}
	}
}

func (c *Console) println(format string, args ...interface{}) {
	fmt.Fprintf(c.port, format+"\r\n", args...)
}

func (c *Console) exec(h Handler, line string) {
	logger.Debugf("Console command [%v]", line)
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "help", "?":
		c.println("status        current readings and warnings")
		c.println("flush         write buffered log lines now")
		c.println("time [unix]   show or set the wall clock")
		c.println("alarms        next deadline of every task")
	case "status":
		c.println("%s", h.Status())
	case "flush":
		if err := h.Flush(); err != nil {
			c.println("flush failed: %v", err)
			return
		}
		c.println("ok")
	case "time":
		if len(fields) == 1 {
			c.println("%d", h.Now())
			return
		}
		s, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			c.println("bad time [%s]", fields[1])
			return
		}
		h.SetTime(s)
		c.println("ok")
	case "alarms":
		for _, a := range h.Alarms() {
			c.println("%s", a)
		}
	default:
		c.println("unknown command [%s], try help", fields[0])
	}
}
