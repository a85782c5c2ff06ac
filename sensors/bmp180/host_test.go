package bmp180_test

import (
	"errors"
	"testing"

	"github.com/b3nn0/bmp180/sensors/bmp180"
	"github.com/b3nn0/bmp180/sensors/bmp180/bmp180sim"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

var errNack = errors.New("nack")

// fakeEmbdBus is an embd.I2CBus backed by a BMP180 register file. Writing
// the control register latches the datasheet raw values into the output
// registers.
type fakeEmbdBus struct {
	regs   [256]byte
	fail   bool
	writes [][]byte
	reads  []int // length of each register read
}

func newFakeEmbdBus() *fakeEmbdBus {
	f := &fakeEmbdBus{}
	copy(f.regs[bmp180.RegCali:], bmp180.DatasheetCalibration.Bytes())
	f.regs[bmp180.RegChipId] = bmp180.ChipId
	return f
}

func (f *fakeEmbdBus) check(addr byte) error {
	if f.fail || addr != bmp180.Address {
		return errNack
	}
	return nil
}

func (f *fakeEmbdBus) store(reg byte, value []byte) {
	f.writes = append(f.writes, append([]byte{reg}, value...))
	for i, v := range value {
		f.regs[reg+byte(i)] = v
	}
	if reg != bmp180.RegCtrl || len(value) == 0 {
		return
	}
	switch cmd := value[0]; {
	case cmd == bmp180.CmdTemp:
		f.regs[bmp180.RegOutMSB] = byte(bmp180sim.DatasheetUT >> 8)
		f.regs[bmp180.RegOutLSB] = byte(bmp180sim.DatasheetUT & 0xFF)
	case cmd&0x3F == bmp180.CmdPressure:
		oss := cmd >> 6
		raw := uint32(bmp180sim.DatasheetUP) << oss << (8 - oss)
		f.regs[bmp180.RegOutMSB] = byte(raw >> 16)
		f.regs[bmp180.RegOutLSB] = byte(raw >> 8)
		f.regs[bmp180.RegOutXLSB] = byte(raw)
	}
}

func (f *fakeEmbdBus) ReadByte(addr byte) (byte, error) {
	if err := f.check(addr); err != nil {
		return 0, err
	}
	return 0, nil
}

func (f *fakeEmbdBus) ReadBytes(addr byte, num int) ([]byte, error) {
	if err := f.check(addr); err != nil {
		return nil, err
	}
	return make([]byte, num), nil
}

func (f *fakeEmbdBus) WriteByte(addr, value byte) error {
	return f.check(addr)
}

func (f *fakeEmbdBus) WriteBytes(addr byte, value []byte) error {
	if err := f.check(addr); err != nil {
		return err
	}
	if len(value) > 0 {
		f.store(value[0], value[1:])
	}
	return nil
}

func (f *fakeEmbdBus) ReadFromReg(addr, reg byte, value []byte) error {
	if err := f.check(addr); err != nil {
		return err
	}
	f.reads = append(f.reads, len(value))
	for i := range value {
		value[i] = f.regs[reg+byte(i)]
	}
	return nil
}

func (f *fakeEmbdBus) ReadByteFromReg(addr, reg byte) (byte, error) {
	if err := f.check(addr); err != nil {
		return 0, err
	}
	f.reads = append(f.reads, 1)
	return f.regs[reg], nil
}

func (f *fakeEmbdBus) ReadWordFromReg(addr, reg byte) (uint16, error) {
	if err := f.check(addr); err != nil {
		return 0, err
	}
	return uint16(f.regs[reg])<<8 | uint16(f.regs[reg+1]), nil
}

func (f *fakeEmbdBus) WriteToReg(addr, reg byte, value []byte) error {
	if err := f.check(addr); err != nil {
		return err
	}
	f.store(reg, value)
	return nil
}

func (f *fakeEmbdBus) WriteByteToReg(addr, reg, value byte) error {
	return f.WriteToReg(addr, reg, []byte{value})
}

func (f *fakeEmbdBus) WriteWordToReg(addr, reg byte, value uint16) error {
	return f.WriteToReg(addr, reg, []byte{byte(value >> 8), byte(value)})
}

func (f *fakeEmbdBus) Close() error { return nil }

func newEmbdDevice(t *testing.T, f *fakeEmbdBus) *bmp180.Device {
	t.Helper()
	bus := bmp180.NewBus(bmp180.NewEmbdPeripheral(f), bmp180.BusConfig{Clock: bmp180sim.NewClock()})
	dev := bmp180.New(bus, bmp180.Config{})
	dev.Initialize()
	return dev
}

func TestEmbdMeasure(t *testing.T) {
	f := newFakeEmbdBus()
	dev := newEmbdDevice(t, f)

	if err := dev.Connected(); err != nil {
		t.Fatal(err)
	}
	if err := dev.ReadCalibration(); err != nil {
		t.Fatal(err)
	}
	if cal, _ := dev.Calibration(); cal != bmp180.DatasheetCalibration {
		t.Errorf("calibration %+v", cal)
	}

	for oss := bmp180.UltraLowPower; oss <= bmp180.UltraHighResolution; oss++ {
		r, err := dev.Measure(oss)
		if err != nil {
			t.Fatalf("oss %d: %v", oss, err)
		}
		if r.Temperature != 15.0 {
			t.Errorf("oss %d: temperature %.1f", oss, r.Temperature)
		}
		if r.UP != bmp180sim.DatasheetUP<<oss {
			t.Errorf("oss %d: UP = %d", oss, r.UP)
		}
	}

	p, err := dev.MeasurePressure(bmp180.UltraLowPower)
	if err != nil {
		t.Fatal(err)
	}
	if p != 69964 {
		t.Errorf("pressure = %d, want 69964", p)
	}
}

func TestEmbdWriteIsOneMessage(t *testing.T) {
	f := newFakeEmbdBus()
	dev := newEmbdDevice(t, f)

	if err := dev.SoftReset(); err != nil {
		t.Fatal(err)
	}
	if len(f.writes) != 1 || len(f.writes[0]) != 2 ||
		f.writes[0][0] != bmp180.RegReset || f.writes[0][1] != bmp180.SoftReset {
		t.Errorf("writes % X", f.writes)
	}
}

func TestEmbdReadIsOneTransfer(t *testing.T) {
	f := newFakeEmbdBus()
	dev := newEmbdDevice(t, f)

	if err := dev.ReadCalibration(); err != nil {
		t.Fatal(err)
	}
	if len(f.reads) != 1 || f.reads[0] != bmp180.CaliLen {
		t.Errorf("calibration reads %v", f.reads)
	}

	f.reads = nil
	if _, err := dev.Measure(bmp180.UltraHighResolution); err != nil {
		t.Fatal(err)
	}
	if len(f.reads) != 2 || f.reads[0] != 2 || f.reads[1] != 3 {
		t.Errorf("measurement reads %v, want [2 3]", f.reads)
	}
}

func TestEmbdFailure(t *testing.T) {
	f := newFakeEmbdBus()
	dev := newEmbdDevice(t, f)
	f.fail = true

	if err := dev.ReadCalibration(); !errors.Is(err, errNack) {
		t.Errorf("ReadCalibration: got %v", err)
	}
	if err := dev.SoftReset(); !errors.Is(err, errNack) {
		t.Errorf("SoftReset: got %v", err)
	}

	f.fail = false
	if err := dev.ReadCalibration(); err != nil {
		t.Errorf("after recovery: %v", err)
	}
}

func TestPeriphPlayback(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x77, W: []byte{0xD0}, R: []byte{0x55}},
			{Addr: 0x77, W: []byte{0xF4, 0x2E}},
			{Addr: 0x77, W: []byte{0xF6}, R: []byte{0x6C, 0xFA}},
		},
	}
	b := bmp180.NewBus(bmp180.NewPeriphPeripheral(bus), bmp180.BusConfig{Clock: bmp180sim.NewClock()})
	dev := bmp180.New(b, bmp180.Config{})
	dev.Initialize()

	id, err := dev.ChipID()
	if err != nil {
		t.Fatal(err)
	}
	if id != bmp180.ChipId {
		t.Errorf("chip id 0x%02X", id)
	}
	if err := b.WriteRegister(bmp180.RegCtrl, bmp180.CmdTemp); err != nil {
		t.Fatal(err)
	}
	v, err := b.ReadBytes(bmp180.RegOutMSB, 2)
	if err != nil {
		t.Fatal(err)
	}
	if int(v[0])<<8|int(v[1]) != bmp180sim.DatasheetUT {
		t.Errorf("UT bytes % X", v)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestReadingEnv(t *testing.T) {
	r := bmp180.Reading{Temperature: 15.0, Pressure: 69964}

	var e physic.Env
	r.Env(&e)
	if want := 15*physic.Celsius + physic.ZeroCelsius; e.Temperature != want {
		t.Errorf("temperature %s, want %s", e.Temperature, want)
	}
	if want := 69964 * physic.Pascal; e.Pressure != want {
		t.Errorf("pressure %s, want %s", e.Pressure, want)
	}
}
