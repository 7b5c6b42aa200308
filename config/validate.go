package config

import (
	"fmt"
)

const minutesPerDay = 24 * 60

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	s := cfg.Schedule
	if s.MaxSleepHours == 0 {
		return fmt.Errorf("schedule: max_sleep_hours must be at least 1")
	}
	if s.ResetTimeOffsetMinutes >= minutesPerDay {
		return fmt.Errorf("schedule: reset_time_offset_minutes %d is not a time of day", s.ResetTimeOffsetMinutes)
	}

	if cfg.Log.LinesPerFile == 1 {
		// the header alone would fill every file
		return fmt.Errorf("log: lines_per_file can't be 1")
	}
	if cfg.Log.LinesPerFile < 0 || cfg.Log.BufferLines < 0 {
		return fmt.Errorf("log: lines_per_file and buffer_lines can't be negative")
	}
	if cfg.Log.Dir == "" {
		return fmt.Errorf("log: dir is required")
	}
	if m := cfg.Log.MQTT; m != nil && (m.Broker == "" || m.Topic == "") {
		return fmt.Errorf("log.mqtt: broker and topic are required")
	}
	if p := cfg.Log.Postgres; p != nil && p.DSN == "" {
		return fmt.Errorf("log.postgres: dsn is required")
	}
	if h := cfg.Log.HTTP; h != nil && h.URL == "" {
		return fmt.Errorf("log.http: url is required")
	}

	if cfg.Power.LightSleepSeconds == 0 && cfg.Power.SerialWake {
		return fmt.Errorf("power: serial_wake needs light_sleep_seconds")
	}
	if cfg.Power.SpuriousRetries < 0 {
		return fmt.Errorf("power: spurious_retries can't be negative")
	}

	sensors := make(map[string]bool)
	for _, sn := range cfg.Sensors {
		if sn.Name == "" {
			return fmt.Errorf("sensor: name is required")
		}
		if sensors[sn.Name] {
			return fmt.Errorf("sensor %q: duplicate name", sn.Name)
		}
		sensors[sn.Name] = true

		switch sn.Kind {
		case KindBME280:
			switch sn.Field {
			case "temperature", "humidity", "pressure":
			default:
				return fmt.Errorf("sensor %q: unknown field %q", sn.Name, sn.Field)
			}
		case KindMCP9808:
		case KindFile:
			if sn.Path == "" {
				return fmt.Errorf("sensor %q: path is required", sn.Name)
			}
		case KindPulse:
			if sn.Pin == "" {
				return fmt.Errorf("sensor %q: pin is required", sn.Name)
			}
		default:
			return fmt.Errorf("sensor %q: unknown kind %q", sn.Name, sn.Kind)
		}

		switch sn.Role {
		case "", RoleBattery, RoleVcc:
		default:
			return fmt.Errorf("sensor %q: unknown role %q", sn.Name, sn.Role)
		}
		if sn.Monitored && sn.Min > sn.Max {
			return fmt.Errorf("sensor %q: min %d above max %d", sn.Name, sn.Min, sn.Max)
		}
	}

	controllers := make(map[string]bool)
	for _, c := range cfg.Controllers {
		if c.Name == "" {
			return fmt.Errorf("controller: name is required")
		}
		if controllers[c.Name] {
			return fmt.Errorf("controller %q: duplicate name", c.Name)
		}
		controllers[c.Name] = true

		if c.TimeOfDay {
			if c.ScheduleMinutes >= minutesPerDay {
				return fmt.Errorf("controller %q: schedule_minutes %d is not a time of day", c.Name, c.ScheduleMinutes)
			}
			if c.SkewMinutes >= minutesPerDay {
				return fmt.Errorf("controller %q: skew_minutes %d is a day or more", c.Name, c.SkewMinutes)
			}
		}
		if c.Sensor != "" && !sensors[c.Sensor] {
			return fmt.Errorf("controller %q: unknown sensor %q", c.Name, c.Sensor)
		}
		if c.Sensor != "" && c.Below == nil {
			return fmt.Errorf("controller %q: sensor needs below", c.Name)
		}
	}

	return nil
}
