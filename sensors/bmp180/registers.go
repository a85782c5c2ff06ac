// Package bmp180 provides a driver for Bosch's BMP180 digital temperature & pressure sensor.
// The datasheet can be found here: https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bmp180-ds000.pdf
package bmp180

const Address byte = 0x77 // fixed 7-bit I2C address

const (
	RegCali    byte = 0xAA // start of the 22 byte calibration EEPROM (AC1 MSB)
	RegChipId  byte = 0xD0 // useful for checking the connection
	RegReset   byte = 0xE0 // soft reset register
	RegCtrl    byte = 0xF4 // measurement control register
	RegOutMSB  byte = 0xF6 // start of ADC output registers
	RegOutLSB  byte = 0xF7
	RegOutXLSB byte = 0xF8
)

const (
	ChipId      byte = 0x55 // correct response if reading from chip id register
	SoftReset   byte = 0xB6 // writing this to RegReset performs a power-on reset
	CmdTemp     byte = 0x2E // start a temperature conversion
	CmdPressure byte = 0x34 // start a pressure conversion, oversampling in bits 7:6
)

const (
	CaliLen = 22 // bytes of calibration EEPROM
	CaliNum = 11 // number of calibration coefficients
)

const (
	DefaultSourceClock uint32 = 1200000 // controller input clock, Hz
	DefaultBusClock    uint32 = 100000  // SCL rate, Hz
)
