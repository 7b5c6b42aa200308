package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/envmon/button"
	"github.com/gr-butler/envmon/clock"
	"github.com/gr-butler/envmon/config"
	"github.com/gr-butler/envmon/console"
	"github.com/gr-butler/envmon/controllers"
	"github.com/gr-butler/envmon/datalog"
	"github.com/gr-butler/envmon/env"
	"github.com/gr-butler/envmon/irq"
	"github.com/gr-butler/envmon/led"
	"github.com/gr-butler/envmon/power"
	"github.com/gr-butler/envmon/scheduler"
	"github.com/gr-butler/envmon/sensors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	logger "github.com/sirupsen/logrus"
)

const version = "GRB-EnvMon-1.0.0"

type monitor struct {
	cfg      *config.Config
	args     env.Args
	flags    *irq.Flags
	clk      *clock.Source
	ind      *led.LED
	sensors  *sensors.Set
	log      *datalog.Logger
	console  *console.Console
	watcher  *button.Watcher
	sched    *scheduler.Scheduler
	warnings datalog.Warning
}

func main() {
	args := env.Args{
		Config:  flag.String("config", env.DefaultConfigFile, "configuration file"),
		Test:    flag.Bool("test", false, "test mode, does not send data to network sinks"),
		Verbose: flag.Bool("verbose", false, "debug logging"),
		LogFile: flag.String("logfile", "", "write the daemon log to this file, rotated"),
	}
	flag.Parse()
	setupLogging(args)

	logger.Infof("Starting environment monitor [%v]", version)
	if *args.Test {
		logger.Info("TEST MODE")
	}

	cfg, err := config.Load(*args.Config)
	if err != nil {
		logger.Errorf("Failed to load config [%v]", err)
		logger.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		logger.Errorf("Invalid config [%v]", err)
		logger.Exit(1)
	}

	if _, err := host.Init(); err != nil {
		logger.Errorf("Failed to initialize periph [%v]", err)
		logger.Exit(1)
	}

	m := &monitor{cfg: cfg, args: args, flags: irq.NewFlags(), clk: clock.NewReal()}
	bus, err := openBus(cfg.Sensors)
	if err != nil {
		logger.Errorf("Failed to open I2C bus [%v]", err)
		logger.Exit(1)
	}
	if bus != nil {
		defer bus.Close()
	}
	m.sensors, err = sensors.FromConfig(bus, cfg.Sensors)
	if err != nil {
		logger.Errorf("Failed to initialise sensors!! [%v]", err)
		logger.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.build(); err != nil {
		logger.Errorf("Failed to start [%v]", err)
		logger.Exit(1)
	}

	// start go routines
	if m.watcher != nil {
		go m.watcher.Run(ctx)
	}
	go func() {
		if err := m.console.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("Console reader stopped [%v]", err)
		}
	}()
	if cfg.Metrics.Listen != "" {
		go m.serve(cfg.Metrics.Listen)
	}

	_ = m.sched.Run(ctx)
	defer logger.Info("Exiting...")
}

func setupLogging(args env.Args) {
	if *args.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if *args.LogFile != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   *args.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
}

// openBus opens the default I2C bus if any sensor lives on it.
func openBus(cfgs []config.Sensor) (i2c.BusCloser, error) {
	for _, c := range cfgs {
		if c.Kind == config.KindBME280 || c.Kind == config.KindMCP9808 {
			logger.Info("Opening I2C bus")
			return i2creg.Open("")
		}
	}
	return nil, nil
}

func powerConfig(p config.Power) power.Config {
	c := power.DefaultConfig()
	c.LightSleep = time.Duration(p.LightSleepSeconds) * time.Second
	c.MinDeepSleep = time.Duration(p.MinDeepSleepSeconds) * time.Second
	if p.MaxDeepSleepSeconds > 0 {
		c.MaxDeepSleep = time.Duration(p.MaxDeepSleepSeconds) * time.Second
	}
	c.SerialWake = p.SerialWake
	c.SpuriousRetries = p.SpuriousRetries
	return c
}

// build wires the collaborators into the dispatch loop.
func (m *monitor) build() error {
	cfg := m.cfg
	m.ind = led.NewLED("status", cfg.Indicator.Pin)

	sleeper := power.NewHostSleeper(m.clk.Clock(), m.flags)
	disp := power.NewDispatcher(powerConfig(cfg.Power), sleeper, m.flags, func() {
		// awake but busy
		m.ind.Flash(3, env.DelayErr)
	})

	port, err := m.openConsole()
	if err != nil {
		return err
	}
	m.console = console.New(port, m.flags)

	sinks, err := m.sinks()
	if err != nil {
		return err
	}
	names := make([]string, len(cfg.Controllers))
	for i, c := range cfg.Controllers {
		names[i] = c.Name
	}
	m.log = datalog.NewLogger(cfg.Log.BufferLines, datalog.Header{
		Sensors:     m.sensors.Columns(),
		Controllers: names,
	}, &m.warnings, sinks...)

	ctrls, err := controllers.FromConfig(cfg.Controllers, nil, func(name string) controllers.Source {
		if s := m.sensors.Lookup(name); s != nil {
			return s
		}
		return nil
	}, disp)
	if err != nil {
		return err
	}
	tasks := make([]scheduler.Task, len(ctrls))
	for i, c := range ctrls {
		tasks[i] = scheduler.Task{
			Controller: c,
			Schedule:   scheduler.ControllerSchedule(cfg.Controllers[i], cfg.Schedule.ControllerPeriodMinutes),
		}
	}

	deps := scheduler.Deps{
		Clock:       m.clk,
		Sleeper:     disp,
		Flags:       m.flags,
		Indicator:   m.ind,
		Console:     m.console,
		Sensors:     m.sensors,
		Log:         m.log,
		Controllers: tasks,
		Warnings:    &m.warnings,
	}
	if pin := gpioreg.ByName(cfg.Button.Pin); pin != nil {
		hold := time.Duration(cfg.Button.HoldIntervalMs) * time.Millisecond
		debounce := time.Duration(cfg.Button.DebounceMs) * time.Millisecond
		deps.Button = button.NewReader(pin, m.clk.Clock(), m.ind, hold, debounce)
		m.watcher = button.NewWatcher(pin, m.flags)
		deps.Watcher = m.watcher
	} else {
		logger.Warnf("Failed to find button pin [%v], manual triggers disabled", cfg.Button.Pin)
	}

	m.sched = scheduler.New(cfg.Schedule, deps)
	return nil
}

type stdio struct {
	io.Reader
	io.Writer
}

func (m *monitor) openConsole() (io.ReadWriter, error) {
	if m.cfg.Console.Device == "" {
		return stdio{os.Stdin, os.Stdout}, nil
	}
	return console.Open(m.cfg.Console.Device, console.DefaultBaudRate)
}

func (m *monitor) sinks() ([]datalog.Sink, error) {
	lc := m.cfg.Log
	sinks := []datalog.Sink{datalog.NewFileSink(lc.Dir, lc.NamePattern, lc.LinesPerFile, lc.FileMandatory)}
	if lc.Serial {
		sinks = append(sinks, datalog.NewSerialSink(m.console.Writer()))
	}
	if *m.args.Test {
		logger.Info("Test mode, network sinks disabled")
		return sinks, nil
	}
	if lc.MQTT != nil {
		sinks = append(sinks, datalog.NewMQTTSink(lc.MQTT.Broker, lc.MQTT.ClientID, lc.MQTT.Topic, lc.MQTT.Mandatory))
	}
	if lc.Postgres != nil {
		pg, err := datalog.NewPostgresSink(lc.Postgres.DSN, lc.Postgres.Table, lc.Postgres.Mandatory)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if lc.HTTP != nil {
		sinks = append(sinks, datalog.NewHTTPSink(lc.HTTP.URL, lc.HTTP.Station, lc.HTTP.Key, version, lc.HTTP.Mandatory))
	}
	return sinks, nil
}

func (m *monitor) serve(listen string) {
	logger.Infof("Starting webservice on [%v]", listen)
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handler)
	mux.Handle("/metrics", promhttp.Handler())
	logger.Error(http.ListenAndServe(listen, mux))
}

func (m *monitor) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(m.sched.State())
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Debugf("Web read: [%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}
