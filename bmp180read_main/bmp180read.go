package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/b3nn0/bmp180/sensors"
	"github.com/b3nn0/bmp180/sensors/bmp180"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

func readBMP180(dev *bmp180.Device, oss bmp180.Oversampling, qnh float64) error {
	r, err := dev.Measure(oss)
	if err != nil {
		return err
	}
	var env physic.Env
	r.Env(&env)
	press := float64(r.Pressure) / 100
	fmt.Printf("Temp %s Press %s Alt %.0f ft (UT %d UP %d)\n",
		env.Temperature, env.Pressure, sensors.CalcAltitude(press, qnh), r.UT, r.UP)
	return nil
}

func main() {
	backend := flag.String("backend", sensors.BackendEmbd, "Bus backend: embd, periph or sim")
	bus := flag.String("bus", "", "I2C bus number or name")
	oss := flag.Int("oss", int(bmp180.UltraHighResolution), "Pressure oversampling setting, 0 to 3")
	qnh := flag.Float64("qnh", sensors.QNH, "Sea level pressure, mbar")
	count := flag.Int("n", 1, "Number of readings, 0 for no limit")
	interval := flag.Duration("interval", time.Second, "Time between readings")
	debug := flag.Bool("debug", false, "Log bus traffic and raw values")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	dev, closer, err := sensors.OpenBMP180(sensors.BusOptions{Backend: *backend, Bus: *bus})
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer closer.Close()

	if err := dev.Connected(); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
	if err := dev.ReadCalibration(); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
	cal, _ := dev.Calibration()
	log.Debugf("calibration %+v", cal)

	for i := 0; *count == 0 || i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}
		if err := readBMP180(dev, bmp180.Oversampling(*oss), *qnh); err != nil {
			log.Errorf("readBMP180(): %v", err)
		}
	}
}
