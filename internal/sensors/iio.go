package sensors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// iioChannel maps an IIO sysfs channel to a reading key. The kernel reports
// temperature and humidity in milli-units and pressure in kPa.
type iioChannel struct {
	name  string
	key   string
	scale float64
}

var iioChannels = []iioChannel{
	{name: "temp", key: "temperature", scale: 0.001},
	{name: "humidityrelative", key: "humidity", scale: 0.001},
	{name: "pressure", key: "pressure", scale: 10},
}

// IIO reads an environmental sensor bound to a kernel Industrial I/O driver,
// such as dht11 (DHT11/DHT22) or bmp280 (BMP180/BMP280/BME280).
type IIO struct {
	name    string
	devPath string
	now     func() time.Time
}

func NewIIO(name, devPath string) *IIO {
	return &IIO{name: name, devPath: devPath, now: time.Now}
}

func (s *IIO) Name() string {
	return s.name
}

// Read returns temperature in °C, humidity in %RH and pressure in hPa, for
// the channels the device has. Every present channel must read.
func (s *IIO) Read(ctx context.Context) (Reading, error) {
	r := Reading{Device: s.name, Timestamp: s.now(), Values: make(map[string]float64, len(iioChannels)), Main: "temperature"}

	var errs []error
	for _, ch := range iioChannels {
		if err := ctx.Err(); err != nil {
			return Reading{}, err
		}
		v, err := readIIOChannel(s.devPath, ch.name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.name, err))
			continue
		}
		r.Values[ch.key] = v * ch.scale
	}
	if len(errs) > 0 {
		return Reading{}, errors.Join(errs...)
	}
	if len(r.Values) == 0 {
		return Reading{}, fmt.Errorf("no IIO channels under %s", s.devPath)
	}
	return r, nil
}

func (s *IIO) Close() error {
	return nil
}

// readIIOChannel returns in_<ch>_input, or (in_<ch>_raw + in_<ch>_offset) *
// in_<ch>_scale for drivers that only expose raw values.
func readIIOChannel(dir, ch string) (float64, error) {
	v, err := readSysfsFloat(filepath.Join(dir, "in_"+ch+"_input"))
	if !errors.Is(err, fs.ErrNotExist) {
		return v, err
	}

	raw, err := readSysfsFloat(filepath.Join(dir, "in_"+ch+"_raw"))
	if err != nil {
		return 0, err
	}
	offset, err := readSysfsFloat(filepath.Join(dir, "in_"+ch+"_offset"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	scale, err := readSysfsFloat(filepath.Join(dir, "in_"+ch+"_scale"))
	if errors.Is(err, fs.ErrNotExist) {
		scale, err = 1, nil
	}
	if err != nil {
		return 0, err
	}
	return (raw + offset) * scale, nil
}

func readSysfsFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return v, nil
}
