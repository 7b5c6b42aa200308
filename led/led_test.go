package led

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newTestLED(pin *gpiotest.Pin) (*LED, *[]time.Duration) {
	var sleeps []time.Duration
	var l *LED
	if pin == nil {
		l = New("test", nil)
	} else {
		l = New("test", pin)
	}
	l.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return l, &sleeps
}

func TestFlashRestoresState(t *testing.T) {
	pin := &gpiotest.Pin{N: "LED"}
	l, sleeps := newTestLED(pin)

	l.Flash(3, 250*time.Millisecond)
	assert.Equal(t, gpio.Low, pin.L)
	assert.False(t, l.IsOn())
	assert.Len(t, *sleeps, 6)
	assert.Equal(t, 250*time.Millisecond, (*sleeps)[0])
	assert.Equal(t, gap, (*sleeps)[1])

	l.On()
	l.Flash(1, time.Millisecond)
	assert.Equal(t, gpio.High, pin.L)
	assert.True(t, l.IsOn())
}

func TestFlashRejectsDaftRequests(t *testing.T) {
	l, sleeps := newTestLED(&gpiotest.Pin{N: "LED"})
	l.Flash(0, time.Second)
	l.Flash(101, time.Second)
	assert.Empty(t, *sleeps)
}

func TestMissingPin(t *testing.T) {
	l, sleeps := newTestLED(nil)
	l.On()
	assert.True(t, l.IsOn())
	l.Flash(2, time.Millisecond)
	assert.Len(t, *sleeps, 4)
}
