package bmp180

import (
	"errors"
	"testing"
)

func TestParseCalibrationBigEndian(t *testing.T) {
	raw := []byte{
		0x5A, 0x71, // AC1
		0xFF, 0xB8, // AC2 = -72
		0xC7, 0xD1, // AC3 = -14383
		0xFF, 0xFE, // AC4, unsigned
		0x7F, 0xF5, // AC5
		0x5A, 0x71, // AC6
		0x18, 0x2E, // B1
		0x00, 0x04, // B2
		0x80, 0x00, // MB = -32768
		0xDD, 0xF9, // MC = -8711
		0x0B, 0x34, // MD
	}
	cal, err := ParseCalibration(raw)
	if err != nil {
		t.Fatal(err)
	}

	want := Calibration{
		AC1: 0x5A71,
		AC2: -72,
		AC3: -14383,
		AC4: 0xFFFE,
		AC5: 32757,
		AC6: 23153,
		B1:  6190,
		B2:  4,
		MB:  -32768,
		MC:  -8711,
		MD:  2868,
	}
	if cal != want {
		t.Errorf("ParseCalibration:\n got %+v\nwant %+v", cal, want)
	}
}

func TestParseCalibrationLength(t *testing.T) {
	if _, err := ParseCalibration(make([]byte, 21)); err == nil {
		t.Error("21 bytes accepted")
	}
}

func TestCalibrationBytes(t *testing.T) {
	raw := DatasheetCalibration.Bytes()
	if len(raw) != CaliLen {
		t.Fatalf("len = %d", len(raw))
	}
	if raw[0] != 0x01 || raw[1] != 0x98 {
		t.Errorf("AC1 bytes % X, want 01 98", raw[:2])
	}
	cal, err := ParseCalibration(raw)
	if err != nil || cal != DatasheetCalibration {
		t.Errorf("got %+v, %v", cal, err)
	}
}

func TestCalibrationValidate(t *testing.T) {
	if err := DatasheetCalibration.Validate(); err != nil {
		t.Errorf("datasheet table rejected: %v", err)
	}

	cal := DatasheetCalibration
	cal.B2 = 0
	if err := cal.Validate(); !errors.Is(err, ErrInvalidCalibration) {
		t.Errorf("B2 = 0: got %v", err)
	}

	cal = DatasheetCalibration
	cal.AC5 = 0xFFFF
	if err := cal.Validate(); !errors.Is(err, ErrInvalidCalibration) {
		t.Errorf("AC5 = 0xFFFF: got %v", err)
	}

	cal = DatasheetCalibration
	cal.MC = -1
	if err := cal.Validate(); !errors.Is(err, ErrInvalidCalibration) {
		t.Errorf("MC = -1: got %v", err)
	}
}
