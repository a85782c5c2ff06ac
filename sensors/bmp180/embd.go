package bmp180

import (
	"github.com/kidoman/embd"
	"golang.org/x/xerrors"
)

// NewEmbdPeripheral drives the sensor through an embd I2C bus, e.g.
// embd.NewI2CBus(1) on a Raspberry Pi.
func NewEmbdPeripheral(bus embd.I2CBus) Peripheral {
	return newHostPeripheral(func(addr uint8, w, r []byte) error {
		var err error
		switch {
		case len(r) == 0 && len(w) == 1:
			err = bus.WriteByte(addr, w[0])
		case len(r) == 0:
			err = bus.WriteToReg(addr, w[0], w[1:])
		case len(w) == 0:
			var v []byte
			v, err = bus.ReadBytes(addr, len(r))
			copy(r, v)
		default:
			err = bus.ReadFromReg(addr, w[0], r)
		}
		if err != nil {
			return xerrors.Errorf("embd i2c 0x%02X: %w", addr, err)
		}
		return nil
	})
}
