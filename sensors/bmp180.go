package sensors

import (
	"sync"
	"time"

	"github.com/b3nn0/bmp180/sensors/bmp180"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// numRetries is the number of consecutive failed reads after which the
// sensor is given up on.
const numRetries = 5

var errBMP180 = xerrors.New("BMP180 Error: BMP180 is not running")

// BMP180Config holds the polling settings. Zero values select the defaults.
type BMP180Config struct {
	Oversampling bmp180.Oversampling
	Interval     time.Duration // 100ms by default
	Retries      int
	// OnReading, if set, is called from the polling goroutine after every
	// attempt, with either a reading or the error of that attempt.
	OnReading func(r bmp180.Reading, err error)
	Log       logrus.FieldLogger
}

// BMP180 represents a BMP180 sensor and implements the PressureReader interface.
type BMP180 struct {
	sensor *bmp180.Device
	cfg    BMP180Config
	log    logrus.FieldLogger

	mu      sync.Mutex
	data    bmp180.Reading
	at      time.Time
	running bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBMP180 checks that a BMP180 answers on dev, reads its calibration and
// begins reading it.
func NewBMP180(dev *bmp180.Device, cfg BMP180Config) (*BMP180, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.Retries <= 0 {
		cfg.Retries = numRetries
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if !cfg.Oversampling.Valid() {
		return nil, bmp180.ErrOversampling
	}

	if err := dev.Connected(); err != nil {
		return nil, err
	}
	if err := dev.ReadCalibration(); err != nil {
		return nil, err
	}
	r, err := dev.Measure(cfg.Oversampling)
	if err != nil {
		return nil, err
	}

	bmp := &BMP180{
		sensor:  dev,
		cfg:     cfg,
		log:     cfg.Log.WithField("sensor", "bmp180"),
		data:    r,
		at:      time.Now(),
		running: true,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.OnReading != nil {
		cfg.OnReading(r, nil)
	}
	go bmp.run(bmp.stop)
	return bmp, nil
}

func (bmp *BMP180) run(stop <-chan struct{}) {
	defer close(bmp.done)

	clock := time.NewTicker(bmp.cfg.Interval)
	defer clock.Stop()

	failnum := 0
	for {
		select {
		case <-stop:
			return
		case <-clock.C:
		}

		r, err := bmp.sensor.Measure(bmp.cfg.Oversampling)
		if bmp.cfg.OnReading != nil {
			bmp.cfg.OnReading(r, err)
		}
		if err != nil {
			failnum++
			bmp.log.Warnf("couldn't read sensor: %v", err)
			if failnum > bmp.cfg.Retries {
				bmp.log.Errorf("couldn't read sensor %d times, closing BMP180: %v", failnum, err)
				bmp.mu.Lock()
				bmp.running = false
				bmp.mu.Unlock()
				return
			}
			continue
		}
		failnum = 0

		bmp.mu.Lock()
		bmp.data = r
		bmp.at = time.Now()
		bmp.mu.Unlock()
	}
}

// Temperature returns the current temperature in degrees C measured by the BMP180
func (bmp *BMP180) Temperature() (float64, error) {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	if !bmp.running {
		return 0, errBMP180
	}
	return bmp.data.Temperature, nil
}

// Pressure returns the current pressure in mbar measured by the BMP180
func (bmp *BMP180) Pressure() (float64, error) {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	if !bmp.running {
		return 0, errBMP180
	}
	return float64(bmp.data.Pressure) / 100, nil
}

// Reading returns the last good reading and when it was taken.
func (bmp *BMP180) Reading() (bmp180.Reading, time.Time, error) {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	if !bmp.running {
		return bmp180.Reading{}, time.Time{}, errBMP180
	}
	return bmp.data, bmp.at, nil
}

// Running reports whether the sensor is still being polled.
func (bmp *BMP180) Running() bool {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	return bmp.running
}

// Close stops the measurements of the BMP180. It waits for a measurement in
// progress to finish and may be called more than once.
func (bmp *BMP180) Close() {
	bmp.closeOnce.Do(func() { close(bmp.stop) })
	bmp.mu.Lock()
	bmp.running = false
	bmp.mu.Unlock()
	<-bmp.done
}
