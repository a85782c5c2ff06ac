package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/b3nn0/bmp180/common"
	"github.com/b3nn0/bmp180/sensors"
	"github.com/b3nn0/bmp180/sensors/bmp180"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/takama/daemon"
	"golang.org/x/xerrors"
)

const (
	configLocation = "/etc/bmp180d.conf"

	// how often to read the sensor
	defaultIntervalMS = 1000

	// how often to try reopening a sensor that was given up on
	reconnectDelay = 10 * time.Second

	logFileName = "bmp180d.log"

	// name of the service
	name        = "bmp180d"
	description = "BMP180 temperature and pressure monitor"

	// Address on which daemon should be listen.
	defaultListenAddr = ":9978"
)

type metrics struct {
	registry *prometheus.Registry

	currentTemp     prometheus.Gauge
	currentPressure prometheus.Gauge
	currentAltitude prometheus.Gauge
	currentCpuTemp  prometheus.Gauge
	totalReadings   prometheus.Counter
	totalErrors     *prometheus.CounterVec
	totalUptime     prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		currentTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmp180_temperature_celsius",
			Help: "Current sensor temperature.",
		}),
		currentPressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmp180_pressure_pascals",
			Help: "Current absolute pressure.",
		}),
		currentAltitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmp180_pressure_altitude_feet",
			Help: "Pressure altitude against the configured QNH.",
		}),
		currentCpuTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmp180d_cpu_temperature_celsius",
			Help: "Current board temperature.",
		}),
		totalReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bmp180_readings_total",
			Help: "Successful readings.",
		}),
		totalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmp180_read_errors_total",
				Help: "Failed readings by cause.",
			},
			[]string{"cause"},
		),
		totalUptime: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bmp180d_uptime_seconds_total",
			Help: "Total uptime.",
		}),
	}
	m.registry.MustRegister(
		m.currentTemp,
		m.currentPressure,
		m.currentAltitude,
		m.currentCpuTemp,
		m.totalReadings,
		m.totalErrors,
		m.totalUptime,
	)
	return m
}

// errorCause labels a failed reading for the error counter.
func errorCause(err error) string {
	switch {
	case xerrors.Is(err, bmp180.ErrBusTimeout):
		return "timeout"
	case xerrors.Is(err, bmp180.ErrDivisionByZero), xerrors.Is(err, bmp180.ErrNotCalibrated):
		return "compensation"
	}
	return "bus"
}

// Status is served as JSON on /.
type Status struct {
	Backend      string
	Connected    bool
	Temperature  float64 // degrees C
	Pressure     float64 // mbar
	Altitude     float64 // feet
	QNH          float64
	UT           int32
	UP           int32
	Oversampling string
	LastReading  string
	Readings     uint64
	Errors       uint64
	LastError    string
	CpuTemp      float32 `json:",omitempty"`
	Uptime       string
}

type monitor struct {
	mu       sync.Mutex
	settings Settings
	metrics  *metrics
	mono     *common.Monotonic
	status   Status
	lastAt   time.Time

	reader   *sensors.BMP180
	closer   io.Closer
	exporter *influxExporter
	exportCh chan bmp180.Reading
	stopCh   chan struct{}
}

func newMonitor(s Settings, m *metrics, mono *common.Monotonic) *monitor {
	return &monitor{
		settings: s,
		metrics:  m,
		mono:     mono,
		status:   Status{Backend: s.Backend, QNH: s.QNH},
	}
}

// start opens the sensor and begins polling it.
func (m *monitor) start() error {
	m.mu.Lock()
	s := m.settings
	m.status.Backend = s.Backend
	m.status.QNH = s.QNH
	m.mu.Unlock()

	dev, closer, err := sensors.OpenBMP180(sensors.BusOptions{
		Backend: s.Backend,
		Bus:     s.Bus,
		Address: s.Address,
		Timeout: s.Timeout(),
	})
	if err != nil {
		return err
	}

	var exporter *influxExporter
	var exportCh chan bmp180.Reading
	if s.Influx.Enabled() {
		exporter = newInfluxExporter(s.Influx, s.QNH)
		exportCh = make(chan bmp180.Reading, 16)
		go m.export(exporter, exportCh)
	}

	m.mu.Lock()
	m.exporter = exporter
	m.exportCh = exportCh
	m.mu.Unlock()

	reader, err := sensors.NewBMP180(dev, sensors.BMP180Config{
		Oversampling: bmp180.Oversampling(s.Oversampling),
		Interval:     s.Interval(),
		Retries:      s.Retries,
		OnReading:    m.onReading,
	})
	if err != nil {
		closer.Close()
		m.stopExport()
		m.onReading(bmp180.Reading{}, err)
		return err
	}

	m.mu.Lock()
	m.reader = reader
	m.closer = closer
	m.status.Connected = true
	m.mu.Unlock()
	log.Infof("BMP180 connected via %s, oss %d, every %v", s.Backend, s.Oversampling, s.Interval())
	return nil
}

// stop closes the sensor. It may be called when nothing is open.
func (m *monitor) stop() {
	m.mu.Lock()
	reader, closer := m.reader, m.closer
	m.reader, m.closer = nil, nil
	m.status.Connected = false
	m.mu.Unlock()

	if reader != nil {
		reader.Close()
	}
	if closer != nil {
		closer.Close()
	}
	m.stopExport()
}

func (m *monitor) stopExport() {
	m.mu.Lock()
	exporter, exportCh := m.exporter, m.exportCh
	m.exporter, m.exportCh = nil, nil
	m.mu.Unlock()
	if exportCh != nil {
		close(exportCh)
	}
	if exporter != nil {
		exporter.Close()
	}
}

func (m *monitor) export(e *influxExporter, ch <-chan bmp180.Reading) {
	for r := range ch {
		if err := e.Export(r, time.Now()); err != nil {
			log.Warnf("%+v", err)
		}
	}
}

// running reports whether the sensor is open and being polled.
func (m *monitor) running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reader != nil && m.reader.Running()
}

// reconnect reopens a sensor that was given up on.
func (m *monitor) reconnect() {
	if m.running() {
		return
	}
	m.stop()
	if err := m.start(); err != nil {
		log.Warnf("couldn't open BMP180: %v", err)
	}
}

// reload applies new settings by reopening the sensor.
func (m *monitor) reload(s Settings) error {
	m.stop()
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return m.start()
}

func (m *monitor) onReading(r bmp180.Reading, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.status.Errors++
		m.status.LastError = err.Error()
		m.metrics.totalErrors.With(prometheus.Labels{"cause": errorCause(err)}).Inc()
		return
	}

	press := float64(r.Pressure) / 100
	alt := sensors.CalcAltitude(press, m.settings.QNH)

	m.lastAt = m.mono.Now()
	m.status.Readings++
	m.status.Temperature = r.Temperature
	m.status.Pressure = press
	m.status.Altitude = alt
	m.status.UT = r.UT
	m.status.UP = r.UP
	m.status.Oversampling = r.Oversampling.String()

	m.metrics.totalReadings.Inc()
	m.metrics.currentTemp.Set(r.Temperature)
	m.metrics.currentPressure.Set(float64(r.Pressure))
	m.metrics.currentAltitude.Set(alt)

	if m.exportCh != nil {
		select {
		case m.exportCh <- r:
		default:
			log.Warnf("influx export falling behind, dropping reading")
		}
	}
}

func (m *monitor) setCpuTemp(t float32) {
	m.mu.Lock()
	m.status.CpuTemp = t
	m.mu.Unlock()
	m.metrics.currentCpuTemp.Set(float64(t))
}

func (m *monitor) snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	if m.reader != nil {
		st.Connected = m.reader.Running()
	}
	if st.Readings > 0 {
		st.LastReading = m.mono.HumanizeTime(m.lastAt)
	}
	st.Uptime = m.mono.Since(time.Time{}).Round(time.Second).String()
	return st
}

func (m *monitor) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	statusJSON, err := json.Marshal(m.snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(statusJSON)
}

func (m *monitor) updateStats(stop <-chan struct{}) {
	updateTicker := time.NewTicker(1 * time.Second)
	defer updateTicker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-updateTicker.C:
			m.metrics.totalUptime.Inc()
		}
	}
}

func newMux(m *monitor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleStatusRequest)
	mux.Handle("/metrics", promhttp.HandlerFor(m.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// initLogging sends the log to dir/bmp180d.log as well as stdout and keeps
// the file rotated.
func initLogging(s Settings, stop <-chan struct{}) (*common.LogFile, error) {
	if s.DEBUG {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if s.LogDir == "" {
		return nil, nil
	}
	lf, err := common.OpenLogFile(s.LogDir, logFileName)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(lf, os.Stdout))
	go lf.Watch(30*time.Second, stop, func(err error) {
		log.Warnf("log rotation: %v", err)
	})
	return lf, nil
}

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage(args []string) (string, error) {
	flags := newCmdFlags(name)
	if err := flags.parse(args); err != nil {
		return "", err
	}

	usage := "Usage: " + name + " [flags] install | remove | start | stop | status"
	// if received any kind of command, do it
	if flags.fs.NArg() > 0 {
		command := flags.fs.Arg(0)
		switch command {
		case "install", "remove", "start", "stop":
			if !common.IsRunningAsRoot() {
				return "", xerrors.Errorf("%s must run as root", command)
			}
		}
		switch command {
		case "install":
			return service.Install(args[:len(args)-flags.fs.NArg()]...)
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	settings, err := readSettings(flags)
	if err != nil {
		return "", err
	}

	stop := make(chan struct{})
	defer close(stop)

	lf, err := initLogging(settings, stop)
	if err != nil {
		return "", err
	}
	if lf != nil {
		defer lf.Close()
	}

	mono := common.NewMonotonic()
	defer mono.Stop()

	mon := newMonitor(settings, newMetrics(), mono)
	if err := mon.start(); err != nil {
		log.Warnf("couldn't open BMP180, retrying every %v: %v", reconnectDelay, err)
	}
	defer mon.stop()
	go mon.updateStats(stop)

	if settings.CpuTemp {
		go common.CpuTempMonitor(common.CpuTempPath, time.Second, stop, mon.setCpuTemp)
	}

	// Set up channel on which to send signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	srv := &http.Server{Addr: settings.ListenAddr, Handler: newMux(mon)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
		}
	}()
	defer srv.Close()

	reconnect := time.NewTicker(reconnectDelay)
	defer reconnect.Stop()

	// interrupt by system signal
	for {
		select {
		case <-reconnect.C:
			mon.reconnect()
		case killSignal := <-interrupt:
			log.Infof("Got signal: %v", killSignal)
			switch killSignal {
			case syscall.SIGINT:
				return "Daemon was interrupted by system signal", nil
			case syscall.SIGUSR1:
				s, err := readSettings(flags)
				if err != nil {
					log.Errorf("keeping old settings: %v", err)
					continue
				}
				log.Infof("read in settings")
				if err := mon.reload(s); err != nil {
					log.Warnf("couldn't reopen BMP180: %v", err)
				}
			default:
				return "Daemon was killed", nil
			}
		}
	}
}

func main() {
	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		log.Errorln("Error: ", err)
		os.Exit(1)
	}
	service := &Service{srv}
	status, err := service.Manage(os.Args[1:])
	if err != nil {
		log.Errorln(status, "\nError: ", err)
		os.Exit(1)
	}
	fmt.Println(status)
}
