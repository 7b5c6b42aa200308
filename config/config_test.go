package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
schedule:
  log_period_minutes: 30
  reset_time_offset_minutes: 720
  clock_correction:
    coarse: {period_minutes: 1440, seconds: -5}
    fine: {period_minutes: 60, seconds: 1}
power:
  serial_wake: false
log:
  buffer_lines: 8
  dir: /tmp/envmon
  mqtt: {broker: "tcp://localhost:1883", topic: envmon/log}
sensors:
  - {name: temp, kind: bme280, field: temperature, monitored: true, min: -100, max: 450}
  - {name: batt, kind: file, path: /sys/class/power_supply/BAT0/voltage_now, divisor: 1000, monitored: true, min: 3300, max: 4300, role: battery}
controllers:
  - {name: pump, pin: GPIO22, schedule_minutes: 390, time_of_day: true, skew_minutes: 30, run_seconds: 120, sensor: temp, below: 300}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "envmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, uint32(30), cfg.Schedule.LogPeriodMinutes)
	// untouched keys keep their defaults
	assert.Equal(t, uint32(60), cfg.Schedule.StatusPeriodMinutes)
	assert.Equal(t, uint32(12), cfg.Schedule.MaxSleepHours)
	assert.Equal(t, int64(-5), cfg.Schedule.ClockCorrection.Coarse.Seconds)
	assert.False(t, cfg.Power.SerialWake)
	assert.Equal(t, uint32(5), cfg.Power.LightSleepSeconds)
	assert.Equal(t, 8, cfg.Log.BufferLines)
	assert.Equal(t, "LOG_XX.TSV", cfg.Log.NamePattern)
	require.NotNil(t, cfg.Log.MQTT)
	assert.Nil(t, cfg.Log.Postgres)

	require.Len(t, cfg.Sensors, 2)
	assert.Equal(t, RoleBattery, cfg.Sensors[1].Role)
	require.Len(t, cfg.Controllers, 1)
	require.NotNil(t, cfg.Controllers[0].Below)
	assert.Equal(t, int32(300), *cfg.Controllers[0].Below)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "schedule: [1, 2"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidateRejects(t *testing.T) {
	below := int32(1)
	cases := map[string]func(c *Config){
		"one line per file": func(c *Config) { c.Log.LinesPerFile = 1 },
		"reset offset":      func(c *Config) { c.Schedule.ResetTimeOffsetMinutes = 1440 },
		"no ceiling":        func(c *Config) { c.Schedule.MaxSleepHours = 0 },
		"no log dir":        func(c *Config) { c.Log.Dir = "" },
		"mqtt topic":        func(c *Config) { c.Log.MQTT = &MQTT{Broker: "tcp://x:1883"} },
		"postgres dsn":      func(c *Config) { c.Log.Postgres = &Postgres{} },
		"http url":          func(c *Config) { c.Log.HTTP = &HTTP{} },
		"serial wake":       func(c *Config) { c.Power.LightSleepSeconds = 0 },
		"sensor kind":       func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: "dht11"}} },
		"sensor field":      func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: KindBME280, Field: "wind"}} },
		"file path":         func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: KindFile}} },
		"pulse pin":         func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: KindPulse}} },
		"sensor role":       func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: KindMCP9808, Role: "solar"}} },
		"range":             func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: KindMCP9808, Monitored: true, Min: 5, Max: 1}} },
		"duplicate sensor": func(c *Config) {
			c.Sensors = []Sensor{{Name: "x", Kind: KindMCP9808}, {Name: "x", Kind: KindMCP9808}}
		},
		"time of day":     func(c *Config) { c.Controllers = []Controller{{Name: "p", TimeOfDay: true, ScheduleMinutes: 1440}} },
		"skew":            func(c *Config) { c.Controllers = []Controller{{Name: "p", TimeOfDay: true, SkewMinutes: 1440}} },
		"unknown sensor":  func(c *Config) { c.Controllers = []Controller{{Name: "p", Sensor: "nope", Below: &below}} },
		"missing below":   func(c *Config) { c.Sensors = []Sensor{{Name: "x", Kind: KindMCP9808}}; c.Controllers = []Controller{{Name: "p", Sensor: "x"}} },
		"duplicate ctrl":  func(c *Config) { c.Controllers = []Controller{{Name: "p"}, {Name: "p"}} },
		"controller name": func(c *Config) { c.Controllers = []Controller{{}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
