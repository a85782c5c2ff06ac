package bmp180

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

var (
	ErrInvalidCalibration = xerrors.New("bmp180: calibration word reads 0x0000 or 0xFFFF, check connection")
	errCaliLen            = xerrors.New("bmp180: calibration table must be 22 bytes")
)

// Calibration holds the factory coefficients from the sensor EEPROM.
// AC4, AC5 and AC6 are unsigned, everything else is two's complement.
type Calibration struct {
	AC1 int16
	AC2 int16
	AC3 int16
	AC4 uint16
	AC5 uint16
	AC6 uint16
	B1  int16
	B2  int16
	MB  int16
	MC  int16
	MD  int16
}

// ParseCalibration decodes the 22 byte EEPROM dump, MSB first, in the order
// AC1 through MD.
func ParseCalibration(raw []byte) (Calibration, error) {
	if len(raw) != CaliLen {
		return Calibration{}, errCaliLen
	}
	word := func(i int) uint16 { return binary.BigEndian.Uint16(raw[2*i:]) }

	return Calibration{
		AC1: int16(word(0)),
		AC2: int16(word(1)),
		AC3: int16(word(2)),
		AC4: word(3),
		AC5: word(4),
		AC6: word(5),
		B1:  int16(word(6)),
		B2:  int16(word(7)),
		MB:  int16(word(8)),
		MC:  int16(word(9)),
		MD:  int16(word(10)),
	}, nil
}

// Words returns the coefficients as the raw 16-bit words read from the EEPROM.
func (c Calibration) Words() [CaliNum]uint16 {
	return [CaliNum]uint16{
		uint16(c.AC1), uint16(c.AC2), uint16(c.AC3),
		c.AC4, c.AC5, c.AC6,
		uint16(c.B1), uint16(c.B2),
		uint16(c.MB), uint16(c.MC), uint16(c.MD),
	}
}

// Bytes encodes the table back into its 22 byte EEPROM layout.
func (c Calibration) Bytes() []byte {
	raw := make([]byte, CaliLen)
	for i, w := range c.Words() {
		binary.BigEndian.PutUint16(raw[2*i:], w)
	}
	return raw
}

// Validate applies the datasheet communication check: no word may be 0x0000
// or 0xFFFF.
func (c Calibration) Validate() error {
	for i, w := range c.Words() {
		if w == 0x0000 || w == 0xFFFF {
			return xerrors.Errorf("coefficient %s = 0x%04X: %w", coefficientNames[i], w, ErrInvalidCalibration)
		}
	}
	return nil
}

var coefficientNames = [CaliNum]string{"AC1", "AC2", "AC3", "AC4", "AC5", "AC6", "B1", "B2", "MB", "MC", "MD"}

// DatasheetCalibration is the example coefficient set used in the datasheet's
// worked calculation.
var DatasheetCalibration = Calibration{
	AC1: 408,
	AC2: -72,
	AC3: -14383,
	AC4: 32741,
	AC5: 32757,
	AC6: 23153,
	B1:  6190,
	B2:  4,
	MB:  -32768,
	MC:  -8711,
	MD:  2868,
}
