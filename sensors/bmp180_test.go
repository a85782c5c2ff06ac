package sensors

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/b3nn0/bmp180/sensors/bmp180"
	"github.com/b3nn0/bmp180/sensors/bmp180/bmp180sim"
)

func newSimDevice() (*bmp180.Device, *bmp180sim.Sim) {
	clk := bmp180sim.NewClock()
	sim := bmp180sim.NewDatasheet(clk)
	dev := bmp180.New(bmp180.NewBus(sim, bmp180.BusConfig{Clock: clk}), bmp180.Config{})
	dev.Initialize()
	return dev, sim
}

func TestBMP180Reader(t *testing.T) {
	dev, _ := newSimDevice()
	var r PressureReader
	bmp, err := NewBMP180(dev, BMP180Config{Interval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	r = bmp
	defer r.Close()

	temp, err := r.Temperature()
	if err != nil || temp != 15.0 {
		t.Errorf("Temperature() = %v, %v", temp, err)
	}
	press, err := r.Pressure()
	if err != nil || press != 699.64 {
		t.Errorf("Pressure() = %v, %v", press, err)
	}
}

func TestBMP180OnReading(t *testing.T) {
	dev, _ := newSimDevice()

	var (
		mu sync.Mutex
		n  int
	)
	bmp, err := NewBMP180(dev, BMP180Config{
		Interval: time.Millisecond,
		OnReading: func(r bmp180.Reading, err error) {
			if err != nil || r.Pressure != 69964 {
				t.Errorf("reading %+v, %v", r, err)
			}
			mu.Lock()
			n++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := n
		mu.Unlock()
		if got >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	bmp.Close()

	mu.Lock()
	defer mu.Unlock()
	if n < 3 {
		t.Errorf("%d readings delivered", n)
	}
}

func TestBMP180GivesUp(t *testing.T) {
	dev, sim := newSimDevice()
	bmp, err := NewBMP180(dev, BMP180Config{Interval: time.Millisecond, Retries: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer bmp.Close()

	sim.SetAbsent(true)
	deadline := time.Now().Add(2 * time.Second)
	for bmp.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if bmp.Running() {
		t.Fatal("still running with the sensor gone")
	}
	if _, err := bmp.Pressure(); err == nil {
		t.Error("Pressure() succeeded after giving up")
	}
}

func TestBMP180Absent(t *testing.T) {
	dev, sim := newSimDevice()
	sim.SetAbsent(true)
	if _, err := NewBMP180(dev, BMP180Config{}); err == nil {
		t.Error("NewBMP180 succeeded without a sensor")
	}
}

func TestBMP180CloseTwice(t *testing.T) {
	dev, _ := newSimDevice()
	bmp, err := NewBMP180(dev, BMP180Config{})
	if err != nil {
		t.Fatal(err)
	}
	bmp.Close()
	bmp.Close()
	if _, err := bmp.Temperature(); err == nil {
		t.Error("Temperature() succeeded after Close")
	}
}

func TestBMP180CloseDuringReading(t *testing.T) {
	dev, _ := newSimDevice()

	inCallback := make(chan struct{}, 1)
	var (
		mu    sync.Mutex
		ready bool
	)
	bmp, err := NewBMP180(dev, BMP180Config{
		Interval: time.Millisecond,
		OnReading: func(r bmp180.Reading, err error) {
			mu.Lock()
			polling := ready
			mu.Unlock()
			if !polling {
				return
			}
			select {
			case inCallback <- struct{}{}:
			default:
			}
			time.Sleep(50 * time.Millisecond)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	ready = true
	mu.Unlock()

	select {
	case <-inCallback:
	case <-time.After(2 * time.Second):
		t.Fatal("no reading from the polling goroutine")
	}

	closed := make(chan struct{})
	go func() {
		bmp.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() blocked with a reading in progress")
	}
	if bmp.Running() {
		t.Error("still running after Close")
	}
}

func TestBMP180ConcurrentClose(t *testing.T) {
	dev, _ := newSimDevice()
	bmp, err := NewBMP180(dev, BMP180Config{Interval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bmp.Close()
		}()
	}
	wg.Wait()
}

func TestCalcAltitude(t *testing.T) {
	if a := CalcAltitude(QNH, QNH); a != 0 {
		t.Errorf("altitude at QNH = %f", a)
	}
	if a := CalcAltitude(699.64, QNH); math.Abs(a-9891.6) > 1 {
		t.Errorf("altitude at 699.64 mbar = %f ft", a)
	}
	if CalcAltitude(1000, 1020) <= CalcAltitude(1000, QNH) {
		t.Error("a higher QNH should raise the altitude")
	}
}
