package bmp180

import "time"

// Direction selects the transfer direction signalled with a START condition.
type Direction bool

const (
	Write Direction = false
	Read  Direction = true
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Peripheral is the register-level view of a synchronous two-wire bus
// controller. A hardware port maps these onto control registers and flags;
// the host adapters and bmp180sim emulate them.
type Peripheral interface {
	SetReset(enabled bool)       // hold or release the controller in software reset
	SetMasterMode()              // synchronous I2C master
	SetClockDivisor(div uint16)  // SCL = source clock / div
	SetTargetAddress(addr uint8) // 7-bit target address
	Start(dir Direction)         // START, or repeated START if a transfer is open
	Stop()                       // request STOP after the current byte
	TxEmpty() bool               // transmit buffer can take the next byte
	RxFull() bool                // receive buffer holds a byte
	WriteTx(b byte)              // load the transmit buffer
	ReadRx() byte                // drain the receive buffer
	Fault() error                // NACK or transfer failure flagged by the controller
}

// BlockReader is implemented by peripherals that move a whole read in one
// host transfer. ReadBytes announces the length right after the restart.
type BlockReader interface {
	ExpectRead(count int)
}

// Clock is the time source used for conversion delays and bus deadlines.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
