// Package aqi converts PM2.5 concentrations to the US EPA Air Quality Index.
package aqi

import "math"

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// EPA PM2.5 breakpoints (µg/m³, 24-hour average)
var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// PM25 returns the AQI for a PM2.5 concentration in µg/m³. Concentrations
// past the last breakpoint are reported as 500.
func PM25(pm float64) int {
	if pm < 0 {
		return 0
	}
	// The breakpoint table is defined at 0.1 µg/m³ resolution.
	pm = math.Floor(pm*10) / 10
	for _, bp := range pm25Breakpoints {
		if pm <= bp.cHigh {
			v := (bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(pm-bp.cLow) + bp.iLow
			return int(math.Round(v))
		}
	}
	return 500
}

// Category names the AQI band of v.
func Category(v int) string {
	switch {
	case v <= 50:
		return "Good"
	case v <= 100:
		return "Moderate"
	case v <= 150:
		return "Unhealthy for Sensitive Groups"
	case v <= 200:
		return "Unhealthy"
	case v <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
