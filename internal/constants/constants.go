// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Response status values and fixed messages shared by the command server
// and its handlers.
const (
	StateOK      = "OK"
	StateWarning = "WARNING"
	StateError   = "ERROR"

	MessageOn         = "On"
	MessageOff        = "Off"
	MessageCmdUnknown = "Unknown command."
)
