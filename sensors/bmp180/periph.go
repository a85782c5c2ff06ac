package bmp180

import (
	"math"

	"golang.org/x/xerrors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// NewPeriphPeripheral drives the sensor through a periph.io I2C bus, e.g. the
// one returned by i2creg.Open("").
func NewPeriphPeripheral(bus i2c.Bus) Peripheral {
	return newHostPeripheral(func(addr uint8, w, r []byte) error {
		if err := bus.Tx(uint16(addr), w, r); err != nil {
			return xerrors.Errorf("%s 0x%02X: %w", bus, addr, err)
		}
		return nil
	})
}

// Env fills the temperature and pressure of e from the reading.
func (r Reading) Env(e *physic.Env) {
	tenths := int64(math.Round(r.Temperature * 10))
	e.Temperature = physic.Temperature(tenths)*100*physic.MilliCelsius + physic.ZeroCelsius
	e.Pressure = physic.Pressure(r.Pressure) * physic.Pascal
}
