package bmp180

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var (
	ErrBusTimeout = xerrors.New("bmp180: bus flag not ready before deadline")
	errReadCount  = xerrors.New("bmp180: read count must be positive")
)

const (
	DefaultTimeout      = 10 * time.Millisecond
	DefaultPollInterval = 10 * time.Microsecond
)

// BusConfig holds the transport settings. Zero values select the defaults;
// a negative Timeout waits on bus flags forever.
type BusConfig struct {
	Address      uint8
	SourceClock  uint32
	BusClock     uint32
	Timeout      time.Duration
	PollInterval time.Duration
	Clock        Clock
	Log          logrus.FieldLogger
}

func (c BusConfig) withDefaults() BusConfig {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.SourceClock == 0 {
		c.SourceClock = DefaultSourceClock
	}
	if c.BusClock == 0 {
		c.BusClock = DefaultBusClock
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	return c
}

// Bus is a blocking two-wire master talking to one fixed target address.
// It is not safe for concurrent use; Device serialises access to it.
type Bus struct {
	p   Peripheral
	cfg BusConfig
	log logrus.FieldLogger
}

func NewBus(p Peripheral, cfg BusConfig) *Bus {
	cfg = cfg.withDefaults()
	return &Bus{
		p:   p,
		cfg: cfg,
		log: cfg.Log.WithField("sensor", "bmp180"),
	}
}

func (b *Bus) Clock() Clock { return b.cfg.Clock }

// Divisor returns the clock divisor programmed by Initialize.
func (b *Bus) Divisor() uint16 {
	div := b.cfg.SourceClock / b.cfg.BusClock
	if div == 0 {
		div = 1
	}
	if div > 0xFFFF {
		div = 0xFFFF
	}
	return uint16(div)
}

// Initialize configures the controller as a synchronous master addressed to
// the sensor and leaves the bus idle. The device is not probed.
func (b *Bus) Initialize() {
	b.p.SetReset(true)
	b.p.SetMasterMode()
	b.p.SetClockDivisor(b.Divisor())
	b.p.SetTargetAddress(b.cfg.Address)
	b.p.SetReset(false)
	b.log.Debugf("bus initialized: addr 0x%02X, divisor %d", b.cfg.Address, b.Divisor())
}

// WriteRegister writes one value byte to register reg in a single transaction.
func (b *Bus) WriteRegister(reg, value byte) error {
	b.p.Start(Write)
	if err := b.send(reg); err != nil {
		return b.abort("write register address", err)
	}
	if err := b.send(value); err != nil {
		return b.abort("write register value", err)
	}
	if err := b.wait(b.p.TxEmpty); err != nil {
		return b.abort("write stop", err)
	}
	b.p.Stop()
	if err := b.p.Fault(); err != nil {
		return b.fail("write", err)
	}
	return nil
}

// ReadBytes reads count consecutive bytes starting at register reg. The STOP
// request is raised before the final byte is received so the target releases
// the bus after it.
func (b *Bus) ReadBytes(reg byte, count int) ([]byte, error) {
	if count <= 0 {
		return nil, errReadCount
	}

	b.p.Start(Write)
	if err := b.send(reg); err != nil {
		return nil, b.abort("read register address", err)
	}
	if err := b.wait(b.p.TxEmpty); err != nil {
		return nil, b.abort("read restart", err)
	}
	b.p.Start(Read)
	if br, ok := b.p.(BlockReader); ok {
		br.ExpectRead(count)
	}

	buf := make([]byte, count)
	for i := range buf {
		if i == count-1 {
			b.p.Stop()
		}
		if err := b.wait(b.p.RxFull); err != nil {
			if i == count-1 {
				return nil, b.fail("read final byte", err)
			}
			return nil, b.abort("read byte", err)
		}
		buf[i] = b.p.ReadRx()
	}
	return buf, nil
}

func (b *Bus) send(v byte) error {
	if err := b.wait(b.p.TxEmpty); err != nil {
		return err
	}
	b.p.WriteTx(v)
	return nil
}

// wait polls ready until it reports true, the peripheral flags a fault, or
// the deadline passes.
func (b *Bus) wait(ready func() bool) error {
	clk := b.cfg.Clock
	deadline := clk.Now().Add(b.cfg.Timeout)
	for {
		if err := b.p.Fault(); err != nil {
			return err
		}
		if ready() {
			return nil
		}
		if b.cfg.Timeout > 0 && !clk.Now().Before(deadline) {
			return ErrBusTimeout
		}
		clk.Sleep(b.cfg.PollInterval)
	}
}

// abort releases the bus after a failed transfer.
func (b *Bus) abort(what string, err error) error {
	b.p.Stop()
	return b.fail(what, err)
}

func (b *Bus) fail(what string, err error) error {
	b.log.Warnf("bus %s: %v", what, err)
	return xerrors.Errorf("bmp180: %s: %w", what, err)
}
