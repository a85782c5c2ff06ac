package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/b3nn0/bmp180/sensors"
	"github.com/b3nn0/bmp180/sensors/bmp180"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// InfluxSettings configures the optional export of every reading.
type InfluxSettings struct {
	URL         string            `json:"URL" yaml:"url"`
	Token       string            `json:"Token" yaml:"token"`
	Org         string            `json:"Org" yaml:"org"`
	Bucket      string            `json:"Bucket" yaml:"bucket"`
	Measurement string            `json:"Measurement" yaml:"measurement"`
	Tags        map[string]string `json:"Tags" yaml:"tags"`
}

func (s InfluxSettings) Enabled() bool {
	return s.URL != "" && s.Bucket != ""
}

type Settings struct {
	Backend      string  `json:"Backend" yaml:"backend"`
	Bus          string  `json:"Bus" yaml:"bus"`
	Address      uint8   `json:"Address" yaml:"address"`
	Oversampling int     `json:"Oversampling" yaml:"oversampling"`
	IntervalMS   int     `json:"IntervalMS" yaml:"interval_ms"`
	TimeoutMS    int     `json:"TimeoutMS" yaml:"timeout_ms"` // < 0 waits forever
	Retries      int     `json:"Retries" yaml:"retries"`
	QNH          float64 `json:"QNH" yaml:"qnh"` // mbar
	ListenAddr   string  `json:"ListenAddr" yaml:"listen_addr"`
	LogDir       string  `json:"LogDir" yaml:"log_dir"`
	CpuTemp      bool    `json:"CpuTemp" yaml:"cpu_temp"`
	DEBUG        bool    `json:"DEBUG" yaml:"debug"`

	Influx InfluxSettings `json:"Influx" yaml:"influx"`
}

func defaultSettings() Settings {
	return Settings{
		Backend:      sensors.BackendEmbd,
		Bus:          "1",
		Address:      bmp180.Address,
		Oversampling: int(bmp180.Standard),
		IntervalMS:   defaultIntervalMS,
		TimeoutMS:    int(bmp180.DefaultTimeout / time.Millisecond),
		Retries:      5,
		QNH:          sensors.QNH,
		ListenAddr:   defaultListenAddr,
		Influx: InfluxSettings{
			Measurement: "bmp180",
		},
	}
}

func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMS) * time.Millisecond
}

// Timeout converts TimeoutMS for the bus: 0 keeps the driver default and a
// negative value waits forever.
func (s Settings) Timeout() time.Duration {
	if s.TimeoutMS < 0 {
		return -1
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

func (s Settings) validate() error {
	switch s.Backend {
	case sensors.BackendEmbd, sensors.BackendPeriph, sensors.BackendSim:
	default:
		return xerrors.Errorf("backend %q: %w", s.Backend, sensors.ErrUnknownBackend)
	}
	if s.Oversampling < 0 || !bmp180.Oversampling(s.Oversampling).Valid() {
		return xerrors.Errorf("oversampling %d: %w", s.Oversampling, bmp180.ErrOversampling)
	}
	if s.IntervalMS <= 0 {
		return xerrors.Errorf("interval must be positive, got %dms", s.IntervalMS)
	}
	if s.QNH <= 0 {
		return xerrors.Errorf("qnh must be positive, got %f", s.QNH)
	}
	return nil
}

// loadSettings reads path over the defaults. Files ending in .yaml or .yml
// are YAML, anything else is JSON.
func loadSettings(path string) (Settings, error) {
	s := defaultSettings()
	buf, err := os.ReadFile(path)
	if err != nil {
		return s, xerrors.Errorf("can't read settings %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, &s)
	default:
		err = json.Unmarshal(buf, &s)
	}
	if err != nil {
		return s, xerrors.Errorf("can't parse settings %s: %w", path, err)
	}
	return s, nil
}

// cmdFlags are the command line overrides. Only flags given explicitly
// replace values from the settings file.
type cmdFlags struct {
	fs *flag.FlagSet

	config   string
	backend  string
	bus      string
	oss      int
	interval time.Duration
	listen   string
	debug    bool
}

func newCmdFlags(name string) *cmdFlags {
	d := defaultSettings()
	f := &cmdFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.StringVar(&f.config, "config", configLocation, "Settings file, JSON or YAML")
	f.fs.StringVar(&f.backend, "backend", d.Backend, "Bus backend: embd, periph or sim")
	f.fs.StringVar(&f.bus, "bus", d.Bus, "I2C bus number or name")
	f.fs.IntVar(&f.oss, "oss", d.Oversampling, "Pressure oversampling setting, 0 to 3")
	f.fs.DurationVar(&f.interval, "interval", d.Interval(), "Time between readings")
	f.fs.StringVar(&f.listen, "listen", d.ListenAddr, "Address for /metrics and the status page")
	f.fs.BoolVar(&f.debug, "debug", false, "Log bus traffic and raw values")
	return f
}

func (f *cmdFlags) parse(args []string) error {
	return f.fs.Parse(args)
}

func (f *cmdFlags) apply(s *Settings) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			s.Backend = f.backend
		case "bus":
			s.Bus = f.bus
		case "oss":
			s.Oversampling = f.oss
		case "interval":
			s.IntervalMS = int(f.interval / time.Millisecond)
		case "listen":
			s.ListenAddr = f.listen
		case "debug":
			s.DEBUG = f.debug
		}
	})
}

// readSettings loads the settings file, falling back to the defaults when
// it is missing, and applies the command line on top.
func readSettings(f *cmdFlags) (Settings, error) {
	s, err := loadSettings(f.config)
	if err != nil {
		if !xerrors.Is(err, os.ErrNotExist) {
			return s, err
		}
		log.Infof("no settings file %s, using defaults", f.config)
		s = defaultSettings()
	}
	f.apply(&s)
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}
