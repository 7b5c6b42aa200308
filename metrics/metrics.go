package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var Prom_wakeups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "envmon_wakeups_total",
		Help: "Loop wakeups by the task that caused them",
	},
	[]string{"cause"},
)

var Prom_sleepSkipped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "envmon_sleep_skipped_total",
		Help: "Loop iterations that did not sleep because work was due or an IRQ was pending",
	},
)

var Prom_sleepSeconds = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "envmon_sleep_seconds_total",
		Help: "Time spent asleep by depth",
	},
	[]string{"depth"},
)

var Prom_spuriousWakes = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "envmon_spurious_wakes_total",
		Help: "Wakeups by an interrupt that was not being waited for",
	},
)

var Prom_missedAlarms = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "envmon_missed_alarms_total",
		Help: "Tasks serviced more than one interval late",
	},
	[]string{"task"},
)

var Prom_irqAnomalies = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "envmon_irq_anomalies_total",
		Help: "IRQ flags still set after dispatch",
	},
)

var Prom_buttonActions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "envmon_button_actions_total",
		Help: "Decoded manual trigger actions",
	},
	[]string{"action"},
)

var Prom_bufferedLines = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "envmon_log_buffered_lines",
		Help: "Snapshots waiting in the log ring buffer",
	},
)

var Prom_droppedLines = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "envmon_log_dropped_lines_total",
		Help: "Snapshots overwritten in the ring buffer before they were written",
	},
)

var Prom_writtenLines = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "envmon_log_written_lines_total",
		Help: "Log lines written out",
	},
)

var Prom_sinkFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "envmon_log_sink_failures_total",
		Help: "Log sink open/write/close failures",
	},
	[]string{"sink"},
)

var Prom_warnings = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "envmon_warnings",
		Help: "Current warning bitset",
	},
)

var Prom_controllerRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "envmon_controller_runs_total",
		Help: "Controller checks by result",
	},
	[]string{"controller", "result"},
)

var Prom_sensorReading = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "envmon_sensor_reading",
		Help: "Last integer reading per sensor",
	},
	[]string{"sensor"},
)

func init() {
	prometheus.MustRegister(
		Prom_wakeups,
		Prom_sleepSkipped,
		Prom_sleepSeconds,
		Prom_spuriousWakes,
		Prom_missedAlarms,
		Prom_irqAnomalies,
		Prom_buttonActions,
		Prom_bufferedLines,
		Prom_droppedLines,
		Prom_writtenLines,
		Prom_sinkFailures,
		Prom_warnings,
		Prom_controllerRuns,
		Prom_sensorReading)
}
