// Package sensors provides a polling interface to the barometric sensors used
// by the daemon.
package sensors

import "math"

// QNH is the standard sea level pressure in mbar.
const QNH = 1013.25

// PressureReader provides an interface to a sensor reading pressure and maybe
// temperature, like the BMP180.
type PressureReader interface {
	Temperature() (temp float64, tempError error) // Temperature returns the temperature in degrees C.
	Pressure() (press float64, pressError error)  // Pressure returns the atmospheric pressure in mBar.
	Close()                                       // Close stops reading from the sensor.
}

// CalcAltitude returns the pressure altitude in feet for press in mbar
// against the sea level pressure qnh, also in mbar.
func CalcAltitude(press, qnh float64) (altitude float64) {
	altitude = 145366.45 * (1.0 - math.Pow(press/qnh, 0.190284))
	return
}
