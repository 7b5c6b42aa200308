package led

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// gap keeps consecutive flashes distinct
const gap = 75 * time.Millisecond

// LED is the status indicator. A missing pin is tolerated; the LED just
// becomes a no-op.
type LED struct {
	Name    string
	lock    *sync.Mutex
	on      bool
	gpioPin gpio.PinOut
	sleep   func(time.Duration)
}

func NewLED(name string, GPIOPin string) *LED {
	logger.Infof("Creating new LED on pin [%v] called [%v]", GPIOPin, name)
	p := gpioreg.ByName(GPIOPin)
	if p == nil {
		logger.Errorf("Failed to find %v pin", GPIOPin)
		return New(name, nil)
	}
	return New(name, p)
}

func New(name string, pin gpio.PinOut) *LED {
	l := &LED{
		Name:    name,
		lock:    &sync.Mutex{},
		gpioPin: pin,
		sleep:   time.Sleep,
	}
	if pin != nil {
		_ = pin.Out(gpio.Low)
	}
	return l
}

func (l *LED) On() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.set(true)
}

func (l *LED) Off() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.set(false)
}

func (l *LED) set(on bool) {
	l.on = on
	if l.gpioPin == nil {
		return
	}
	if on {
		_ = l.gpioPin.Out(gpio.High)
	} else {
		_ = l.gpioPin.Out(gpio.Low)
	}
}

// Flash inverts the LED count times for d each. An LED that is on flashes off.
func (l *LED) Flash(count int, d time.Duration) {
	if count < 1 || count > 100 {
		// reject daft or excessive requests
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	base := l.on
	for i := 0; i < count; i++ {
		l.set(!base)
		l.sleep(d)
		l.set(base)
		l.sleep(gap)
	}
}

func (l *LED) IsOn() bool {
	return l.on
}
