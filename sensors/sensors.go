package sensors

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gr-butler/envmon/config"
	"github.com/gr-butler/envmon/datalog"
	"github.com/gr-butler/envmon/metrics"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

/*
 * Sensors is responsible for reading the sensors and turning their output into
 * the integer readings that are logged and checked against limits.
 */

// Reader produces one integer reading.
type Reader interface {
	Read() (int32, error)
}

type invalidator interface {
	Invalidate()
}

type Role int

const (
	RoleNone Role = iota
	RoleBattery
	RoleVcc
)

type Sensor struct {
	Name      string
	Monitored bool
	Min       int32
	Max       int32
	Role      Role
	reader    Reader
	last      datalog.Reading
}

func New(name string, r Reader) *Sensor {
	return &Sensor{Name: name, reader: r}
}

func (s *Sensor) Reading() datalog.Reading {
	return s.last
}

// Set is every tracked sensor, in log column order.
type Set struct {
	sensors []*Sensor
	index   map[string]int
}

func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

func (s *Set) Add(sn *Sensor) {
	s.index[sn.Name] = len(s.sensors)
	s.sensors = append(s.sensors, sn)
}

func (s *Set) Len() int {
	return len(s.sensors)
}

// Lookup returns the named sensor, or nil.
func (s *Set) Lookup(name string) *Sensor {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.sensors[i]
}

func (s *Set) Columns() []datalog.Column {
	cols := make([]datalog.Column, len(s.sensors))
	for i, sn := range s.sensors {
		cols[i] = datalog.Column{Name: sn.Name, Monitored: sn.Monitored}
	}
	return cols
}

// Check reads every sensor and returns the warnings raised. A failed read
// keeps the previous value, marked as an error.
func (s *Set) Check() datalog.Warning {
	for _, sn := range s.sensors {
		if inv, ok := sn.reader.(invalidator); ok {
			inv.Invalidate()
		}
	}

	var w datalog.Warning
	for _, sn := range s.sensors {
		v, err := sn.reader.Read()
		if err != nil {
			logger.Warnf("Sensor [%v] read failed [%v]", sn.Name, err)
			sn.last.Error = true
			w |= datalog.WarnSensor
			continue
		}
		sn.last = datalog.Reading{Value: v, Valid: true}
		metrics.Prom_sensorReading.WithLabelValues(sn.Name).Set(float64(v))

		if sn.Monitored && (v < sn.Min || v > sn.Max) {
			logger.Warnf("Sensor [%v] reading [%v] outside [%v, %v]", sn.Name, v, sn.Min, sn.Max)
			sn.last.Error = true
			switch sn.Role {
			case RoleBattery:
				w |= datalog.WarnBattery
			case RoleVcc:
				w |= datalog.WarnVcc
			default:
				w |= datalog.WarnSensor
			}
		}
	}
	return w
}

// Readings appends the last reading of every sensor to dst.
func (s *Set) Readings(dst []datalog.Reading) []datalog.Reading {
	for _, sn := range s.sensors {
		dst = append(dst, sn.last)
	}
	return dst
}

// FileReader reads an integer from a file such as a sysfs attribute,
// dividing it by Divisor.
type FileReader struct {
	Path    string
	Divisor int64
}

func (f *FileReader) Read() (int32, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.Path, err)
	}
	if f.Divisor > 1 {
		v /= f.Divisor
	}
	return int32(v), nil
}

// FromConfig builds the sensor set. Sensors on the I2C bus share one device
// per kind and address.
func FromConfig(bus i2c.Bus, cfgs []config.Sensor) (*Set, error) {
	set := NewSet()
	devices := make(map[string]*Atmosphere)

	device := func(c config.Sensor) (*Atmosphere, error) {
		key := fmt.Sprintf("%s@%x", c.Kind, c.Address)
		if a, ok := devices[key]; ok {
			return a, nil
		}
		if bus == nil {
			return nil, fmt.Errorf("sensor %q needs the I2C bus", c.Name)
		}
		var a *Atmosphere
		var err error
		if c.Kind == config.KindBME280 {
			a, err = NewBME280(bus, c.Address)
		} else {
			a, err = NewMCP9808(bus, c.Address)
		}
		if err != nil {
			return nil, err
		}
		devices[key] = a
		return a, nil
	}

	for _, c := range cfgs {
		var r Reader
		switch c.Kind {
		case config.KindBME280:
			a, err := device(c)
			if err != nil {
				return nil, err
			}
			r = a.Field(Field(c.Field))
		case config.KindMCP9808:
			a, err := device(c)
			if err != nil {
				return nil, err
			}
			r = a.Field(Temperature)
		case config.KindFile:
			r = &FileReader{Path: c.Path, Divisor: c.Divisor}
		case config.KindPulse:
			pc, err := NewPulseCounter(c.Pin, c.Multiplier)
			if err != nil {
				return nil, fmt.Errorf("sensor %q: %w", c.Name, err)
			}
			r = pc
		default:
			return nil, fmt.Errorf("sensor %q: unknown kind %q", c.Name, c.Kind)
		}

		sn := New(c.Name, r)
		sn.Monitored = c.Monitored
		sn.Min, sn.Max = c.Min, c.Max
		switch c.Role {
		case config.RoleBattery:
			sn.Role = RoleBattery
		case config.RoleVcc:
			sn.Role = RoleVcc
		}
		set.Add(sn)
		logger.Infof("Sensor [%v] kind [%v] monitored [%v]", c.Name, c.Kind, c.Monitored)
	}
	return set, nil
}
