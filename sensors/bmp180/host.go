package bmp180

// txFunc performs one combined host transfer: write w, then read into r.
type txFunc func(addr uint8, w, r []byte) error

type hostState int

const (
	hostIdle hostState = iota
	hostWriting
	hostReading
)

// hostPeripheral emulates the register-level controller on top of a host I2C
// driver that only does whole messages. Written bytes are collected between
// START and STOP and sent as one message. After a restart in read mode the
// announced length is fetched with a single register read, so multi-byte
// values come from one conversion. Without an announced length every byte is
// a one byte read with the pointer auto-incremented like the sensor does.
type hostPeripheral struct {
	tx    txFunc
	addr  uint8
	reset bool

	state   hostState
	wbuf    []byte
	ptr     byte
	havePtr bool
	rx      byte
	rxFull  bool
	want    int
	rbuf    []byte
	stop    bool
	err     error
}

func newHostPeripheral(tx txFunc) *hostPeripheral {
	return &hostPeripheral{tx: tx, addr: Address}
}

func (h *hostPeripheral) SetReset(enabled bool) {
	h.reset = enabled
	if enabled {
		h.state = hostIdle
		h.err = nil
		h.want = 0
		h.rbuf = nil
	}
}

func (h *hostPeripheral) SetMasterMode() {}

// The kernel driver owns the SCL rate.
func (h *hostPeripheral) SetClockDivisor(div uint16) {}

func (h *hostPeripheral) SetTargetAddress(addr uint8) { h.addr = addr }

func (h *hostPeripheral) Start(dir Direction) {
	if dir == Write {
		h.state = hostWriting
		h.wbuf = h.wbuf[:0]
		h.err = nil
		h.stop = false
		return
	}

	h.havePtr = false
	if h.state == hostWriting && len(h.wbuf) > 0 {
		h.ptr = h.wbuf[0]
		h.havePtr = true
	}
	h.state = hostReading
	h.rxFull = false
	h.stop = false
	h.want = 0
	h.rbuf = nil
}

func (h *hostPeripheral) ExpectRead(count int) {
	if h.state == hostReading {
		h.want = count
	}
}

func (h *hostPeripheral) Stop() {
	switch h.state {
	case hostWriting:
		if len(h.wbuf) > 0 {
			if err := h.tx(h.addr, h.wbuf, nil); err != nil {
				h.err = err
			}
		}
		h.state = hostIdle
	case hostReading:
		h.stop = true
	}
}

func (h *hostPeripheral) TxEmpty() bool { return !h.reset }

func (h *hostPeripheral) WriteTx(b byte) {
	if h.state == hostWriting {
		h.wbuf = append(h.wbuf, b)
	}
}

func (h *hostPeripheral) RxFull() bool {
	if h.reset || h.state != hostReading {
		return false
	}
	if h.rxFull {
		return true
	}

	if len(h.rbuf) == 0 {
		n := 1
		if h.want > 0 {
			n, h.want = h.want, 0
		}
		var w []byte
		if h.havePtr {
			w = []byte{h.ptr}
		}
		r := make([]byte, n)
		if err := h.tx(h.addr, w, r); err != nil {
			h.err = err
			return false
		}
		h.rbuf = r
		h.ptr += byte(n)
	}
	h.rx = h.rbuf[0]
	h.rbuf = h.rbuf[1:]
	h.rxFull = true
	return true
}

func (h *hostPeripheral) ReadRx() byte {
	h.rxFull = false
	if h.stop {
		h.state = hostIdle
		h.stop = false
		h.rbuf = nil
	}
	return h.rx
}

func (h *hostPeripheral) Fault() error { return h.err }
