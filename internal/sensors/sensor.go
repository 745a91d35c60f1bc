// Package sensors reads the measurement devices attached to the node.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chrissnell/domonode/pkg/config"
)

// ErrUnchanged is returned when a reading does not differ enough from the
// previous one to be worth reporting.
var ErrUnchanged = errors.New("reading unchanged")

// Reading is one set of values taken from a device at the same time.
type Reading struct {
	Device    string
	Timestamp time.Time
	Values    map[string]float64
	// Main names the value reported to single value devices.
	Main string
}

// Keys returns the value keys in sorted order.
func (r Reading) Keys() []string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Primary returns the Main value, or the value under the first sorted key
// when Main is unset.
func (r Reading) Primary() (string, float64, bool) {
	if v, ok := r.Values[r.Main]; ok {
		return r.Main, v, true
	}
	keys := r.Keys()
	if len(keys) == 0 {
		return "", 0, false
	}
	return keys[0], r.Values[keys[0]], true
}

// Sensor is a device that can be sampled.
type Sensor interface {
	Name() string
	Read(ctx context.Context) (Reading, error)
	Close() error
}

// New builds the sensor described by dev.
func New(dev config.DeviceData) (Sensor, error) {
	switch dev.Type {
	case "ds18b20":
		return NewDS18B20(dev.Name, dev.W1Path), nil
	case "dht22", "bmp280", "iio":
		return NewIIO(dev.Name, dev.IIOPath), nil
	case "vindriktning":
		return NewVindriktning(dev.Name, dev.SerialDevice, dev.Baud, dev.Offset), nil
	default:
		return nil, fmt.Errorf("unsupported device type %q", dev.Type)
	}
}
