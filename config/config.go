package config

import (
	"fmt"
	"os"

	"github.com/gr-butler/envmon/env"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule    Schedule     `yaml:"schedule"`
	Power       Power        `yaml:"power"`
	Button      Button       `yaml:"button"`
	Indicator   Indicator    `yaml:"indicator"`
	Log         Log          `yaml:"log"`
	Sensors     []Sensor     `yaml:"sensors"`
	Controllers []Controller `yaml:"controllers"`
	Console     Console      `yaml:"console"`
	Metrics     Metrics      `yaml:"metrics"`
}

// ---- SCHEDULE ----

// Periods are in minutes, 0 meaning the task only runs when triggered by hand.
type Schedule struct {
	LogPeriodMinutes        uint32          `yaml:"log_period_minutes"`
	StatusPeriodMinutes     uint32          `yaml:"status_period_minutes"`
	ControllerPeriodMinutes uint32          `yaml:"controller_period_minutes"`
	MaxSleepHours           uint32          `yaml:"max_sleep_hours"`
	ResetTimeOffsetMinutes  uint32          `yaml:"reset_time_offset_minutes"`
	ClockCorrection         ClockCorrection `yaml:"clock_correction"`
}

type ClockCorrection struct {
	Coarse Correction `yaml:"coarse"`
	Fine   Correction `yaml:"fine"`
}

type Correction struct {
	PeriodMinutes uint32 `yaml:"period_minutes"`
	Seconds       int64  `yaml:"seconds"`
}

// ---- POWER ----

type Power struct {
	LightSleepSeconds   uint32 `yaml:"light_sleep_seconds"`
	MinDeepSleepSeconds uint32 `yaml:"min_deep_sleep_seconds"`
	MaxDeepSleepSeconds uint32 `yaml:"max_deep_sleep_seconds"`
	SerialWake          bool   `yaml:"serial_wake"`
	SpuriousRetries     int    `yaml:"spurious_retries"`
}

// ---- BUTTON / INDICATOR ----

type Button struct {
	Pin            string `yaml:"pin"`
	HoldIntervalMs uint32 `yaml:"hold_interval_ms"`
	DebounceMs     uint32 `yaml:"debounce_ms"`
}

type Indicator struct {
	Pin string `yaml:"pin"`
}

// ---- LOG ----

type Log struct {
	BufferLines   int    `yaml:"buffer_lines"`
	LinesPerFile  int    `yaml:"lines_per_file"`
	Dir           string `yaml:"dir"`
	NamePattern   string `yaml:"name_pattern"`
	FileMandatory bool   `yaml:"file_mandatory"`
	Serial        bool   `yaml:"serial"`

	// optional sinks
	MQTT     *MQTT     `yaml:"mqtt"`
	Postgres *Postgres `yaml:"postgres"`
	HTTP     *HTTP     `yaml:"http"`
}

type MQTT struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	Mandatory bool   `yaml:"mandatory"`
}

type Postgres struct {
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	Mandatory bool   `yaml:"mandatory"`
}

type HTTP struct {
	URL       string `yaml:"url"`
	Station   string `yaml:"station"`
	Key       string `yaml:"key"`
	Mandatory bool   `yaml:"mandatory"`
}

// ---- SENSORS ----

const (
	KindBME280  = "bme280"
	KindMCP9808 = "mcp9808"
	KindFile    = "file"
	KindPulse   = "pulse"

	RoleBattery = "battery"
	RoleVcc     = "vcc"
)

type Sensor struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Address uint16 `yaml:"address"`
	Field   string `yaml:"field"` // temperature, humidity or pressure
	Path    string `yaml:"path"`  // file sensors
	Divisor int64  `yaml:"divisor"`
	// pulse sensors: a counter on a GPIO pin, e.g. a rain gauge or flow meter
	Pin        string `yaml:"pin"`
	Multiplier int32  `yaml:"multiplier"`

	// a monitored sensor raises a warning outside [min, max]
	Monitored bool   `yaml:"monitored"`
	Min       int32  `yaml:"min"`
	Max       int32  `yaml:"max"`
	Role      string `yaml:"role"`
}

// ---- CONTROLLERS ----

type Controller struct {
	Name string `yaml:"name"`
	Pin  string `yaml:"pin"`
	// ScheduleMinutes is a period, or the minute of the day when TimeOfDay
	// is set. 0 falls back to schedule.controller_period_minutes.
	ScheduleMinutes uint32 `yaml:"schedule_minutes"`
	TimeOfDay       bool   `yaml:"time_of_day"`
	SkewMinutes     uint32 `yaml:"skew_minutes"`
	RunSeconds      uint32 `yaml:"run_seconds"`
	ActiveLow       bool   `yaml:"active_low"`
	// run only while this sensor reads below Below
	Sensor string `yaml:"sensor"`
	Below  *int32 `yaml:"below"`
}

type Console struct {
	Device string `yaml:"device"` // empty for stdin/stdout
}

type Metrics struct {
	Listen string `yaml:"listen"`
}

func Default() *Config {
	return &Config{
		Schedule: Schedule{
			LogPeriodMinutes:    15,
			StatusPeriodMinutes: 60,
			MaxSleepHours:       12,
		},
		Power: Power{
			LightSleepSeconds:   5,
			MinDeepSleepSeconds: 2,
			MaxDeepSleepSeconds: 24 * 60 * 60,
			SerialWake:          true,
			SpuriousRetries:     16,
		},
		Button: Button{
			Pin:            env.ButtonIn,
			HoldIntervalMs: uint32(env.DefaultHoldInterval.Milliseconds()),
			DebounceMs:     uint32(env.DefaultDebounce.Milliseconds()),
		},
		Indicator: Indicator{Pin: env.IndicatorLed},
		Log: Log{
			BufferLines:   15,
			LinesPerFile:  (14 * 24 * 60) / 15,
			Dir:           "/var/lib/envmon",
			NamePattern:   "LOG_XX.TSV",
			FileMandatory: true,
			Serial:        true,
		},
	}
}

// Load reads a YAML file over the defaults. It does not validate.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
