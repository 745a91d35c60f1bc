package reporter

import (
	"errors"
	"fmt"

	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/sensors"
)

var (
	errUnknownSensorType = errors.New("unknown sensor type")
	errMissingValue      = errors.New("reading is missing a value")
)

// ComposeSValue renders r as the nvalue and svalue of a udevice call for the
// given Domoticz sensor type.
func ComposeSValue(sensorType string, r sensors.Reading) (int, string, error) {
	switch sensorType {
	case "temp", "custom", "alert":
	case "temp-hum":
		t, h, err := pair(r, "temperature", "humidity")
		if err != nil {
			return 0, "", err
		}
		return 0, domoticz.TempHumSValue(t, h), nil
	case "temp-baro":
		t, p, err := pair(r, "temperature", "pressure")
		if err != nil {
			return 0, "", err
		}
		return 0, domoticz.TempBaroSValue(t, p), nil
	default:
		return 0, "", fmt.Errorf("%w %q", errUnknownSensorType, sensorType)
	}

	_, v, ok := r.Primary()
	if !ok {
		return 0, "", errMissingValue
	}
	switch sensorType {
	case "temp":
		return 0, domoticz.TempSValue(v), nil
	case "alert":
		return domoticz.AirQualityLevel(v), domoticz.AirQualityText(v), nil
	default:
		return 0, domoticz.FormatValue(v), nil
	}
}

func pair(r sensors.Reading, a, b string) (float64, float64, error) {
	va, ok := r.Values[a]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", errMissingValue, a)
	}
	vb, ok := r.Values[b]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", errMissingValue, b)
	}
	return va, vb, nil
}

// EventData builds the customevent payload. fields renames reading keys;
// keys without a mapping keep their name.
func EventData(r sensors.Reading, fields map[string]string) map[string]float64 {
	data := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		if name, ok := fields[k]; ok && name != "" {
			k = name
		}
		data[k] = v
	}
	return data
}
