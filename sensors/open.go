package sensors

import (
	"io"
	"strconv"
	"time"

	"github.com/b3nn0/bmp180/sensors/bmp180"
	"github.com/b3nn0/bmp180/sensors/bmp180/bmp180sim"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Backends selecting how the sensor is reached.
const (
	BackendEmbd   = "embd"
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

var ErrUnknownBackend = xerrors.New("unknown backend")

// BusOptions selects the host bus a BMP180 is attached to.
type BusOptions struct {
	Backend string
	// Bus is the embd bus number, or the periph bus name or number. Empty
	// means bus 1 for embd and the first bus for periph.
	Bus     string
	Address uint8
	Timeout time.Duration
	Log     logrus.FieldLogger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenBMP180 opens the bus and returns an initialized, uncalibrated device
// and the closer releasing the bus.
func OpenBMP180(opts BusOptions) (*bmp180.Device, io.Closer, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	var (
		p      bmp180.Peripheral
		closer io.Closer
	)
	switch opts.Backend {
	case BackendEmbd, "":
		n := 1
		if opts.Bus != "" {
			v, err := strconv.Atoi(opts.Bus)
			if err != nil || v < 0 || v > 255 {
				return nil, nil, xerrors.Errorf("embd bus %q: must be a bus number", opts.Bus)
			}
			n = v
		}
		if err := embd.InitI2C(); err != nil {
			return nil, nil, xerrors.Errorf("embd.InitI2C: %w", err)
		}
		bus := embd.NewI2CBus(byte(n))
		p = bmp180.NewEmbdPeripheral(bus)
		closer = closerFunc(func() error {
			bus.Close()
			return embd.CloseI2C()
		})
	case BackendPeriph:
		if _, err := host.Init(); err != nil {
			return nil, nil, xerrors.Errorf("host.Init: %w", err)
		}
		bus, err := i2creg.Open(opts.Bus)
		if err != nil {
			return nil, nil, xerrors.Errorf("i2creg.Open: %w", err)
		}
		p = bmp180.NewPeriphPeripheral(bus)
		closer = bus
	case BackendSim:
		p = bmp180sim.NewDatasheet(nil)
		closer = closerFunc(func() error { return nil })
	default:
		return nil, nil, xerrors.Errorf("%q: %w", opts.Backend, ErrUnknownBackend)
	}

	bus := bmp180.NewBus(p, bmp180.BusConfig{
		Address: opts.Address,
		Timeout: opts.Timeout,
		Log:     opts.Log,
	})
	dev := bmp180.New(bus, bmp180.Config{Log: opts.Log})
	dev.Initialize()
	opts.Log.WithField("backend", opts.Backend).Infof("BMP180 bus opened")
	return dev, closer, nil
}
