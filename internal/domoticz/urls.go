// Package domoticz builds Domoticz json.htm API calls and the svalue strings
// the different device types expect.
package domoticz

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SwitchCmd is a switchlight command.
type SwitchCmd string

const (
	SwitchOn       SwitchCmd = "On"
	SwitchOff      SwitchCmd = "Off"
	SwitchToggle   SwitchCmd = "Toggle"
	SwitchStop     SwitchCmd = "Stop"
	SwitchSetLevel SwitchCmd = "Set Level"
)

// URLBuilder builds json.htm URLs for one Domoticz server.
type URLBuilder struct {
	base string
}

// NewURLBuilder returns a builder for scheme://host, host including the port.
func NewURLBuilder(scheme, host string) URLBuilder {
	if scheme == "" {
		scheme = "http"
	}
	return URLBuilder{base: scheme + "://" + host + "/json.htm?type=command"}
}

// UpdateDevice is the udevice call. svalue is passed through verbatim so the
// semicolon separated field list reaches Domoticz untouched.
func (b URLBuilder) UpdateDevice(idx, nvalue int, svalue string) string {
	return b.base + "&param=udevice&idx=" + strconv.Itoa(idx) +
		"&nvalue=" + strconv.Itoa(nvalue) + "&svalue=" + svalue
}

// CustomEvent is the customevent call with data encoded in the query. A nil
// data leaves data= empty for use with a POSTed body.
func (b URLBuilder) CustomEvent(event string, data any) (string, error) {
	u := b.base + "&param=customevent&event=" + url.QueryEscape(event) + "&data="
	if data == nil {
		return u, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode event data: %w", err)
	}
	return u + url.QueryEscape(string(encoded)), nil
}

// SwitchLight is the switchlight call. level is only sent with Set Level and
// is clamped to 0-100.
func (b URLBuilder) SwitchLight(idx int, cmd SwitchCmd, level int) string {
	u := b.base + "&param=switchlight&idx=" + strconv.Itoa(idx) + "&switchcmd=" + string(cmd)
	if cmd == SwitchSetLevel {
		u += "&level=" + strconv.Itoa(min(max(level, 0), 100))
	}
	return u
}
