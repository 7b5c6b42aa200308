package sensors

import (
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/devices/v3/mcp9808"
)

const (
	MCP9808_I2C = 0x18
	BME280_I2C  = 0x76
)

type Field string

const (
	Temperature Field = "temperature" // tenths of a degree C
	Humidity    Field = "humidity"    // % RH
	Pressure    Field = "pressure"    // tenths of a hPa
)

type envSensor interface {
	Sense(e *physic.Env) error
}

// Atmosphere is one environmental sensor read once per status check, however
// many fields are taken from it.
type Atmosphere struct {
	name  string
	dev   envSensor
	env   physic.Env
	err   error
	fresh bool
}

func NewBME280(bus i2c.Bus, addr uint16) (*Atmosphere, error) {
	if addr == 0 {
		addr = BME280_I2C
	}
	logger.Infof("Starting BME280 reader [%x]", addr)
	bme, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bme280: %w", err)
	}
	return newAtmosphere("bme280", bme), nil
}

func NewMCP9808(bus i2c.Bus, addr uint16) (*Atmosphere, error) {
	if addr == 0 {
		addr = MCP9808_I2C
	}
	logger.Infof("Starting MCP9808 Temperature Sensor [%x]", addr)
	dev, err := mcp9808.New(bus, &mcp9808.Opts{Addr: int(addr), Res: mcp9808.High})
	if err != nil {
		return nil, fmt.Errorf("failed to open MCP9808 sensor: %w", err)
	}
	return newAtmosphere("mcp9808", dev), nil
}

func newAtmosphere(name string, dev envSensor) *Atmosphere {
	return &Atmosphere{name: name, dev: dev}
}

// Invalidate forces the next read to sense again.
func (a *Atmosphere) Invalidate() {
	a.fresh = false
}

func (a *Atmosphere) sense() (*physic.Env, error) {
	if !a.fresh {
		a.env = physic.Env{}
		a.err = a.dev.Sense(&a.env)
		a.fresh = true
		if a.err != nil {
			logger.Errorf("%v read failed [%v]", a.name, a.err)
		}
	}
	return &a.env, a.err
}

// Field returns a reader for one value of the sensor.
func (a *Atmosphere) Field(f Field) Reader {
	return &atmField{a: a, f: f}
}

type atmField struct {
	a *Atmosphere
	f Field
}

func (r *atmField) Invalidate() {
	r.a.Invalidate()
}

func (r *atmField) Read() (int32, error) {
	em, err := r.a.sense()
	if err != nil {
		return 0, err
	}
	switch r.f {
	case Temperature:
		return int32(math.Round(em.Temperature.Celsius() * 10)), nil
	case Humidity:
		return int32(math.Round(float64(em.Humidity) / float64(physic.PercentRH))), nil
	case Pressure:
		return int32(math.Round(float64(em.Pressure) / float64(10*physic.Pascal))), nil
	default:
		return 0, fmt.Errorf("unknown field %q", r.f)
	}
}
