package domoticz

import (
	"math"
	"strconv"
	"strings"
)

// Humidity status values of a temp+hum device.
const (
	HumidityNormal      = 0
	HumidityComfortable = 1
	HumidityDry         = 2
	HumidityWet         = 3
)

// Barometer forecast values of a temp+baro device.
const (
	ForecastStable       = 0
	ForecastSunny        = 1
	ForecastCloudy       = 2
	ForecastUnstable     = 3
	ForecastThunderstorm = 4
	ForecastUnknown      = 5
	ForecastCloudyRain   = 6
)

// Air quality levels of the alert device.
const (
	AirQualityGood     = 1
	AirQualityModerate = 2
	AirQualityBad      = 3
)

// FormatValue renders v with as few digits as needed.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SValue joins fields with semicolons.
func SValue(fields ...string) string {
	return strings.Join(fields, ";")
}

// TempSValue is TEMP.
func TempSValue(temp float64) string {
	return FormatValue(temp)
}

// TempHumSValue is TEMP;HUM;HUM_STAT with readings rounded half to even.
func TempHumSValue(temp, hum float64) string {
	t, h := math.RoundToEven(temp), math.RoundToEven(hum)
	return SValue(FormatValue(t), FormatValue(h), strconv.Itoa(HumidityStatus(h, t)))
}

// HumidityStatus classifies relative humidity, taking temperature into
// account for the comfortable band.
func HumidityStatus(hum, temp float64) int {
	switch {
	case hum <= 30:
		return HumidityDry
	case hum >= 70:
		return HumidityWet
	case hum >= 35 && hum <= 65 && temp >= 22 && temp <= 26:
		return HumidityComfortable
	default:
		return HumidityNormal
	}
}

// TempBaroSValue is TEMP;BAR;BAR_FOR;ALTITUDE with pressure in hPa, rounded
// half to even. Altitude is always reported as 0.
func TempBaroSValue(temp, hPa float64) string {
	t, p := math.RoundToEven(temp), math.RoundToEven(hPa)
	return SValue(FormatValue(t), FormatValue(p), strconv.Itoa(BarometerForecast(p)), "0")
}

// BarometerForecast derives a forecast from the pressure in hPa.
func BarometerForecast(hPa float64) int {
	switch {
	case hPa < 966:
		return ForecastThunderstorm
	case hPa < 993:
		return ForecastCloudy
	case hPa < 1007:
		return ForecastCloudyRain
	case hPa < 1013:
		return ForecastUnstable
	case hPa < 1033:
		return ForecastStable
	default:
		return ForecastUnknown
	}
}

// AirQualityLevel maps a PM2.5 concentration in µg/m³ to the sensor's
// green/amber/red bands.
func AirQualityLevel(pm25 float64) int {
	switch {
	case pm25 <= 35:
		return AirQualityGood
	case pm25 <= 85:
		return AirQualityModerate
	default:
		return AirQualityBad
	}
}

// AirQualityText is the alert device text for a PM2.5 reading.
func AirQualityText(pm25 float64) string {
	var label string
	switch AirQualityLevel(pm25) {
	case AirQualityGood:
		label = "GOOD"
	case AirQualityModerate:
		label = "MODERATE"
	default:
		label = "BAD"
	}
	return label + " (" + FormatValue(pm25) + " ug/m3)"
}
