// Package bmp180sim simulates a BMP180 behind a register-level bus
// controller, for tests and for running the daemon without hardware.
package bmp180sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/b3nn0/bmp180/sensors/bmp180"
	"golang.org/x/xerrors"
)

var ErrNoDevice = xerrors.New("bmp180sim: no acknowledge from target")

// maxEvents bounds the transaction log of a long running simulator.
const maxEvents = 4096

// Datasheet example raw values.
const (
	DatasheetUT = 27898
	DatasheetUP = 23843
)

type EventKind int

const (
	EventStart EventKind = iota
	EventRestart
	EventStop
	EventTx
	EventRx
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "START"
	case EventRestart:
		return "RESTART"
	case EventStop:
		return "STOP"
	case EventTx:
		return "TX"
	case EventRx:
		return "RX"
	}
	return "?"
}

// Event is one entry of the bus transaction log.
type Event struct {
	Kind EventKind
	Dir  bmp180.Direction
	Byte byte
	T    time.Time
}

func (e Event) String() string {
	switch e.Kind {
	case EventStart, EventRestart:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Dir)
	case EventTx, EventRx:
		return fmt.Sprintf("%s 0x%02X", e.Kind, e.Byte)
	}
	return e.Kind.String()
}

// Sim is a simulated controller with a BMP180 attached. The zero value is not
// usable; call New.
type Sim struct {
	mu sync.Mutex

	// NeverReady keeps both buffer flags deasserted, as with a hung bus.
	NeverReady bool
	// Absent makes every transfer fail with ErrNoDevice.
	Absent bool

	clock bmp180.Clock
	regs  [256]byte
	ut    uint16
	up    uint32 // before the oversampling shift

	reset   bool
	master  bool
	divisor uint16
	addr    uint8

	open    bool
	dir     bmp180.Direction
	first   bool
	ptr     byte
	stopReq bool

	convDone time.Time
	events   []Event
}

// New returns a simulated sensor loaded with cal and the raw readings ut and
// up. up is the 16 to 19-bit value the sensor reports after the oversampling
// shift at setting 0; at higher settings it is scaled accordingly. clock may
// be nil for the wall clock.
func New(cal bmp180.Calibration, ut, up int32, clock bmp180.Clock) *Sim {
	if clock == nil {
		clock = bmp180.SystemClock
	}
	s := &Sim{clock: clock, ut: uint16(ut), up: uint32(up)}
	copy(s.regs[bmp180.RegCali:], cal.Bytes())
	s.regs[bmp180.RegChipId] = bmp180.ChipId
	s.regs[bmp180.RegOutMSB] = 0x80
	return s
}

// NewDatasheet returns a simulator reproducing the datasheet example.
func NewDatasheet(clock bmp180.Clock) *Sim {
	return New(bmp180.DatasheetCalibration, DatasheetUT, DatasheetUP, clock)
}

// SetRaw changes the values the next conversions produce.
func (s *Sim) SetRaw(ut, up int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ut = uint16(ut)
	s.up = uint32(up)
}

// SetEEPROM overwrites the calibration memory.
func (s *Sim) SetEEPROM(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.regs[bmp180.RegCali:bmp180.RegCali+bmp180.CaliLen], raw)
}

// SetAbsent detaches or reattaches the simulated sensor.
func (s *Sim) SetAbsent(absent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Absent = absent
}

// Register returns the current content of register reg.
func (s *Sim) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// Configured reports the master mode, divisor and address programmed by the
// driver.
func (s *Sim) Configured() (master bool, divisor uint16, addr uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.master, s.divisor, s.addr
}

// Events returns a copy of the transaction log.
func (s *Sim) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *Sim) ResetEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *Sim) record(k EventKind, b byte) {
	if len(s.events) >= maxEvents {
		s.events = append(s.events[:0], s.events[maxEvents/2:]...)
	}
	s.events = append(s.events, Event{Kind: k, Dir: s.dir, Byte: b, T: s.clock.Now()})
}

func (s *Sim) SetReset(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = enabled
	if enabled {
		s.open = false
	}
}

func (s *Sim) SetMasterMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = true
}

func (s *Sim) SetClockDivisor(div uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.divisor = div
}

func (s *Sim) SetTargetAddress(addr uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = addr
}

func (s *Sim) Start(dir bmp180.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := EventStart
	if s.open {
		kind = EventRestart
	}
	s.open = true
	s.dir = dir
	s.first = dir == bmp180.Write
	s.stopReq = false
	s.record(kind, 0)
}

func (s *Sim) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(EventStop, 0)
	if s.open && s.dir == bmp180.Read {
		// Takes effect after the byte being received.
		s.stopReq = true
		return
	}
	s.open = false
}

func (s *Sim) ready() bool {
	return s.open && !s.reset && !s.NeverReady && !s.Absent && s.addr == bmp180.Address
}

func (s *Sim) TxEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready() && s.dir == bmp180.Write
}

func (s *Sim) RxFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready() && s.dir == bmp180.Read
}

func (s *Sim) WriteTx(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(EventTx, b)
	if s.first {
		s.ptr = b
		s.first = false
		return
	}
	s.write(s.ptr, b)
	s.ptr++
}

func (s *Sim) ReadRx() byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.read(s.ptr)
	s.ptr++
	s.record(EventRx, v)
	if s.stopReq {
		s.open = false
		s.stopReq = false
	}
	return v
}

func (s *Sim) Fault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Absent && s.open {
		return ErrNoDevice
	}
	return nil
}

func (s *Sim) write(reg, v byte) {
	switch reg {
	case bmp180.RegReset:
		if v == bmp180.SoftReset {
			s.regs[bmp180.RegCtrl] = 0
		}
	case bmp180.RegCtrl:
		s.regs[reg] = v
		s.convert(v)
	}
}

// convert latches the result of the conversion selected by cmd into the
// output registers and records when it becomes valid.
func (s *Sim) convert(cmd byte) {
	now := s.clock.Now()
	if cmd == bmp180.CmdTemp {
		s.regs[bmp180.RegOutMSB] = byte(s.ut >> 8)
		s.regs[bmp180.RegOutLSB] = byte(s.ut)
		s.regs[bmp180.RegOutXLSB] = 0
		s.convDone = now.Add(bmp180.TemperatureConversionTime)
		return
	}
	if cmd&0x3F != bmp180.CmdPressure {
		return
	}
	oss := bmp180.Oversampling(cmd >> 6)
	raw := s.up << 8 // reads back as up << oss after the driver's shift
	s.regs[bmp180.RegOutMSB] = byte(raw >> 16)
	s.regs[bmp180.RegOutLSB] = byte(raw >> 8)
	s.regs[bmp180.RegOutXLSB] = byte(raw)
	s.convDone = now.Add(oss.ConversionTime())
}

func (s *Sim) read(reg byte) byte {
	if reg >= bmp180.RegOutMSB && reg <= bmp180.RegOutXLSB && s.clock.Now().Before(s.convDone) {
		// Conversion still running, start-of-conversion bit is set.
		return 0xFF
	}
	return s.regs[reg]
}
