package sensors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ds18b20Family is the 1-Wire family code of the DS18B20.
const ds18b20Family = "28-"

// DS18B20 reads every DS18B20 probe found on the kernel's 1-Wire bus.
type DS18B20 struct {
	name    string
	busPath string
	now     func() time.Time
}

func NewDS18B20(name, busPath string) *DS18B20 {
	return &DS18B20{name: name, busPath: busPath, now: time.Now}
}

func (d *DS18B20) Name() string {
	return d.name
}

// Read returns one value per probe in °C, keyed X<ADDRESS>.
func (d *DS18B20) Read(ctx context.Context) (Reading, error) {
	probes, err := filepath.Glob(filepath.Join(d.busPath, ds18b20Family+"*"))
	if err != nil {
		return Reading{}, err
	}
	if len(probes) == 0 {
		return Reading{}, fmt.Errorf("no DS18B20 probes under %s", d.busPath)
	}

	r := Reading{Device: d.name, Timestamp: d.now(), Values: make(map[string]float64, len(probes))}
	var errs []error
	for _, probe := range probes {
		if err := ctx.Err(); err != nil {
			return Reading{}, err
		}
		id := filepath.Base(probe)
		temp, err := readW1Slave(filepath.Join(probe, "w1_slave"))
		if err != nil {
			errs = append(errs, fmt.Errorf("probe %s: %w", id, err))
			continue
		}
		r.Values[ProbeKey(id)] = temp
	}
	if len(r.Values) == 0 {
		return Reading{}, errors.Join(errs...)
	}
	return r, nil
}

func (d *DS18B20) Close() error {
	return nil
}

// ProbeKey turns a sysfs id like 28-0316a279e1ff into X280316A279E1FF.
func ProbeKey(id string) string {
	return "X" + strings.ToUpper(strings.ReplaceAll(id, "-", ""))
}

func readW1Slave(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parseW1Slave(data)
}

// parseW1Slave decodes the two line w1_slave output:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(data []byte) (float64, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) < 2 {
		return 0, errors.New("short w1_slave output")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(lines[0]), []byte("YES")) {
		return 0, errors.New("crc check failed")
	}
	i := bytes.Index(lines[1], []byte("t="))
	if i < 0 {
		return 0, errors.New("no temperature in w1_slave output")
	}
	milli, err := strconv.Atoi(string(bytes.TrimSpace(lines[1][i+2:])))
	if err != nil {
		return 0, fmt.Errorf("parse temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}
