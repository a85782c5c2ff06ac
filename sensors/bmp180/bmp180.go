package bmp180

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var (
	ErrNotCalibrated = xerrors.New("bmp180: calibration has not been read")
	ErrOversampling  = xerrors.New("bmp180: oversampling setting must be 0 to 3")
	ErrWrongChipID   = xerrors.New("bmp180: wrong chip id")
)

// Oversampling selects the pressure resolution. Higher settings average more
// internal samples and take longer to convert.
type Oversampling byte

const (
	UltraLowPower Oversampling = iota
	Standard
	HighResolution
	UltraHighResolution
)

// TemperatureConversionTime is the maximum temperature conversion time.
const TemperatureConversionTime = 4500 * time.Microsecond

var conversionTimes = [...]time.Duration{
	4500 * time.Microsecond,
	7500 * time.Microsecond,
	13500 * time.Microsecond,
	25500 * time.Microsecond,
}

func (o Oversampling) Valid() bool {
	return int(o) < len(conversionTimes)
}

// ConversionTime is the maximum pressure conversion time at this setting.
func (o Oversampling) ConversionTime() time.Duration {
	if !o.Valid() {
		return conversionTimes[len(conversionTimes)-1]
	}
	return conversionTimes[o]
}

func (o Oversampling) command() byte {
	return CmdPressure + byte(o)<<6
}

func (o Oversampling) String() string {
	switch o {
	case UltraLowPower:
		return "ultra low power"
	case Standard:
		return "standard"
	case HighResolution:
		return "high resolution"
	case UltraHighResolution:
		return "ultra high resolution"
	}
	return "invalid"
}

// Reading is one compensated sample together with the raw ADC values it was
// computed from.
type Reading struct {
	Temperature  float64 // degrees C, 0.1 resolution
	Pressure     int32   // Pa
	UT           int32
	UP           int32
	Oversampling Oversampling
}

// Config carries the optional device settings.
type Config struct {
	Log logrus.FieldLogger
}

// Device is one BMP180 behind a Bus. Calls are serialised, so a Device may be
// shared between goroutines.
type Device struct {
	mu    sync.Mutex
	bus   *Bus
	clock Clock
	cal   *Calibration
	log   logrus.FieldLogger
}

func New(bus *Bus, cfg Config) *Device {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Device{
		bus:   bus,
		clock: bus.Clock(),
		log:   cfg.Log.WithField("sensor", "bmp180"),
	}
}

// Initialize brings up the bus controller.
func (d *Device) Initialize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus.Initialize()
}

// ReadCalibration reads and validates the coefficient table. It must succeed
// once before any measurement.
func (d *Device) ReadCalibration() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.bus.ReadBytes(RegCali, CaliLen)
	if err != nil {
		return xerrors.Errorf("read calibration: %w", err)
	}
	cal, err := ParseCalibration(raw)
	if err != nil {
		return err
	}
	if err := cal.Validate(); err != nil {
		return err
	}
	d.cal = &cal
	d.log.Debugf("calibration: %+v", cal)
	return nil
}

// Calibration returns the coefficient table and whether it has been read.
func (d *Device) Calibration() (Calibration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cal == nil {
		return Calibration{}, false
	}
	return *d.cal, true
}

// ChipID reads the identification register. A BMP180 answers 0x55.
func (d *Device) ChipID() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.bus.ReadBytes(RegChipId, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Connected reports whether the bus works and the chip id matches.
func (d *Device) Connected() error {
	id, err := d.ChipID()
	if err != nil {
		return err
	}
	if id != ChipId {
		return xerrors.Errorf("got 0x%02X: %w", id, ErrWrongChipID)
	}
	return nil
}

// SoftReset performs the same sequence as power-on reset. The calibration
// table is kept since the EEPROM does not change.
func (d *Device) SoftReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bus.WriteRegister(RegReset, SoftReset)
}

// MeasureTemperature runs one temperature conversion and returns degrees C
// with one decimal.
func (d *Device) MeasureTemperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.calibration()
	if err != nil {
		return 0, err
	}
	ut, err := d.readUT()
	if err != nil {
		return 0, err
	}
	t, err := cal.Temperature(ut)
	if err != nil {
		return 0, err
	}
	return float64(t) / 10, nil
}

// MeasurePressure runs a pressure conversion at oss followed by a separate
// temperature conversion for compensation, and returns Pa.
func (d *Device) MeasurePressure(oss Oversampling) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.calibration()
	if err != nil {
		return 0, err
	}
	if !oss.Valid() {
		return 0, ErrOversampling
	}
	up, err := d.readUP(oss)
	if err != nil {
		return 0, err
	}
	ut, err := d.readUT()
	if err != nil {
		return 0, err
	}
	return cal.Pressure(up, ut, oss)
}

// MeasurePressureWithTemperature runs only the pressure conversion and
// compensates it with a previously read ut.
func (d *Device) MeasurePressureWithTemperature(oss Oversampling, ut int32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.calibration()
	if err != nil {
		return 0, err
	}
	if !oss.Valid() {
		return 0, ErrOversampling
	}
	up, err := d.readUP(oss)
	if err != nil {
		return 0, err
	}
	return cal.Pressure(up, ut, oss)
}

// Measure reads temperature and pressure with a single temperature
// conversion shared by both results.
func (d *Device) Measure(oss Oversampling) (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.calibration()
	if err != nil {
		return Reading{}, err
	}
	if !oss.Valid() {
		return Reading{}, ErrOversampling
	}
	ut, err := d.readUT()
	if err != nil {
		return Reading{}, err
	}
	up, err := d.readUP(oss)
	if err != nil {
		return Reading{}, err
	}

	b5, err := cal.B5(ut)
	if err != nil {
		return Reading{}, err
	}
	p, err := cal.pressureFromB5(up, b5, oss)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Temperature:  float64(temperatureFromB5(b5)) / 10,
		Pressure:     p,
		UT:           ut,
		UP:           up,
		Oversampling: oss,
	}, nil
}

func (d *Device) calibration() (Calibration, error) {
	if d.cal == nil {
		return Calibration{}, ErrNotCalibrated
	}
	return *d.cal, nil
}

// readUT starts a temperature conversion and returns the 16-bit result.
func (d *Device) readUT() (int32, error) {
	if err := d.bus.WriteRegister(RegCtrl, CmdTemp); err != nil {
		return 0, xerrors.Errorf("start temperature conversion: %w", err)
	}
	d.clock.Sleep(TemperatureConversionTime)

	v, err := d.bus.ReadBytes(RegOutMSB, 2)
	if err != nil {
		return 0, xerrors.Errorf("read temperature: %w", err)
	}
	ut := int32(v[0])<<8 | int32(v[1])
	d.log.Debugf("UT = %d", ut)
	return ut, nil
}

// readUP starts a pressure conversion at oss and returns the 16 to 19-bit
// result.
func (d *Device) readUP(oss Oversampling) (int32, error) {
	if err := d.bus.WriteRegister(RegCtrl, oss.command()); err != nil {
		return 0, xerrors.Errorf("start pressure conversion: %w", err)
	}
	d.clock.Sleep(oss.ConversionTime())

	v, err := d.bus.ReadBytes(RegOutMSB, 3)
	if err != nil {
		return 0, xerrors.Errorf("read pressure: %w", err)
	}
	up := (int32(v[0])<<16 | int32(v[1])<<8 | int32(v[2])) >> (8 - uint(oss))
	d.log.Debugf("UP = %d (oss %d)", up, oss)
	return up, nil
}
