package main

import (
	"context"
	"time"

	"github.com/b3nn0/bmp180/sensors"
	"github.com/b3nn0/bmp180/sensors/bmp180"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"golang.org/x/xerrors"
)

const influxWriteTimeout = 5 * time.Second

// influxExporter writes every reading as one point.
type influxExporter struct {
	qnh   float64
	write func(ctx context.Context, fields map[string]interface{}, t time.Time) error
	close func()
}

func newInfluxExporter(s InfluxSettings, qnh float64) *influxExporter {
	client := influxdb2.NewClient(s.URL, s.Token)
	writer := client.WriteAPIBlocking(s.Org, s.Bucket)

	tags := map[string]string{"sensor": "bmp180"}
	for k, v := range s.Tags {
		tags[k] = v
	}
	measurement := s.Measurement
	if measurement == "" {
		measurement = "bmp180"
	}

	return &influxExporter{
		qnh: qnh,
		write: func(ctx context.Context, fields map[string]interface{}, t time.Time) error {
			return writer.WritePoint(ctx, influxdb2.NewPoint(measurement, tags, fields, t))
		},
		close: client.Close,
	}
}

func readingFields(r bmp180.Reading, qnh float64) map[string]interface{} {
	press := float64(r.Pressure) / 100
	return map[string]interface{}{
		"temperature":  r.Temperature,
		"pressure":     press,
		"altitude":     sensors.CalcAltitude(press, qnh),
		"ut":           r.UT,
		"up":           r.UP,
		"oversampling": int(r.Oversampling),
	}
}

func (e *influxExporter) Export(r bmp180.Reading, t time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), influxWriteTimeout)
	defer cancel()
	if err := e.write(ctx, readingFields(r, e.qnh), t); err != nil {
		return xerrors.Errorf("influxWriter.WritePoint: %w", err)
	}
	return nil
}

func (e *influxExporter) Close() {
	if e.close != nil {
		e.close()
	}
}
