package bmp180

import (
	"math"

	"golang.org/x/xerrors"
)

var ErrDivisionByZero = xerrors.New("bmp180: compensation divides by zero, calibration is corrupt")

// StandardPressure is the ISA sea level pressure in Pa.
const StandardPressure = 101325.0

// The compensation follows the fixed-point reference code from the datasheet
// (section 3.5): a shift where it divides by a power of two, truncating
// division for the two non power of two divisors, and 32-bit unsigned B4/B7.

// B5 returns the intermediate temperature term shared by the temperature and
// pressure calculations.
func (c Calibration) B5(ut int32) (int32, error) {
	x1 := ((int64(ut) - int64(c.AC6)) * int64(c.AC5)) >> 15
	den := x1 + int64(c.MD)
	if den == 0 {
		return 0, xerrors.Errorf("X1+MD: %w", ErrDivisionByZero)
	}
	x2 := (int64(c.MC) << 11) / den
	return int32(x1 + x2), nil
}

// Temperature converts the uncompensated temperature ut into tenths of a
// degree Celsius.
func (c Calibration) Temperature(ut int32) (int32, error) {
	b5, err := c.B5(ut)
	if err != nil {
		return 0, err
	}
	return temperatureFromB5(b5), nil
}

func temperatureFromB5(b5 int32) int32 {
	return (b5 + 8) >> 4
}

// Pressure converts the uncompensated pressure up, sampled at oss, into Pa
// using ut for the temperature term.
func (c Calibration) Pressure(up, ut int32, oss Oversampling) (int32, error) {
	if !oss.Valid() {
		return 0, ErrOversampling
	}
	b5, err := c.B5(ut)
	if err != nil {
		return 0, err
	}
	return c.pressureFromB5(up, b5, oss)
}

func (c Calibration) pressureFromB5(up, b5 int32, oss Oversampling) (int32, error) {
	shift := uint(oss)

	b6 := int64(b5) - 4000
	x1 := (int64(c.B2) * ((b6 * b6) >> 12)) >> 11
	x2 := (int64(c.AC2) * b6) >> 11
	x3 := x1 + x2
	b3 := (((int64(c.AC1)*4 + x3) << shift) + 2) >> 2

	x1 = (int64(c.AC3) * b6) >> 13
	x2 = (int64(c.B1) * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := (uint32(c.AC4) * uint32(x3+32768)) >> 15
	if b4 == 0 {
		return 0, xerrors.Errorf("B4: %w", ErrDivisionByZero)
	}
	b7 := uint32(int64(up)-b3) * uint32(50000>>shift)

	var p int64
	if b7 < 0x80000000 {
		p = int64((b7 * 2) / b4)
	} else {
		p = int64((b7 / b4) * 2)
	}

	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	p += (x1 + x2 + 3791) >> 4

	return int32(p), nil
}

// Altitude returns the height in metres above the level where the pressure
// is p0, both in Pa.
func Altitude(p, p0 float64) float64 {
	return 44330 * (1 - math.Pow(p/p0, 1/5.255))
}

// SeaLevelPressure reduces the pressure p measured at altitude metres to sea
// level.
func SeaLevelPressure(p, altitude float64) float64 {
	return p / math.Pow(1-altitude/44330, 5.255)
}
