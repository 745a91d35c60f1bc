package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultInterface          = "wlan0"
	DefaultAssociator         = "nmcli"
	DefaultPollAttempts       = 10
	DefaultPollInterval       = "1s"
	DefaultListenAddr         = "0.0.0.0"
	DefaultPort               = 80
	DefaultBacklog            = 1
	DefaultMaxRequestBytes    = 1024
	DefaultPostFraming        = "header-block"
	DefaultServeMode          = "auto"
	DefaultDomoticzScheme     = "http"
	DefaultDomoticzTimeout    = "10s"
	DefaultGPIOChip           = "gpiochip0"
	DefaultDeviceInterval     = "60s"
	DefaultVindriktningBaud   = 9600
	DefaultVindriktningOffset = 5
	DefaultW1Path             = "/sys/bus/w1/devices"
	DefaultIIOPath            = "/sys/bus/iio/devices/iio:device0"
	DefaultDiscoveryPrefix    = "domoticz"
	DefaultMQTTKeepAlive      = "60s"
	DefaultSwitchCmd          = "Toggle"
	DefaultDebounce           = "50ms"
	DefaultStatusAddr         = "127.0.0.1"
	DefaultStatusPort         = 8081
)

// ApplyDefaults fills every unset field with its default value
func (c *ConfigData) ApplyDefaults() {
	n := &c.Network
	if n.Interface == "" {
		n.Interface = DefaultInterface
	}
	if n.Associator == "" {
		n.Associator = DefaultAssociator
	}
	if n.PollAttempts == 0 {
		n.PollAttempts = DefaultPollAttempts
	}
	if n.PollInterval == "" {
		n.PollInterval = DefaultPollInterval
	}

	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Backlog == 0 {
		s.Backlog = DefaultBacklog
	}
	if s.MaxRequestBytes == 0 {
		s.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if s.PostFraming == "" {
		s.PostFraming = DefaultPostFraming
	}
	if s.Mode == "" {
		s.Mode = DefaultServeMode
	}

	if c.Indicator != nil && c.Indicator.Chip == "" {
		c.Indicator.Chip = DefaultGPIOChip
	}

	d := &c.Domoticz
	if d.Scheme == "" {
		d.Scheme = DefaultDomoticzScheme
	}
	if d.Timeout == "" {
		d.Timeout = DefaultDomoticzTimeout
	}

	if c.MQTT != nil {
		if c.MQTT.DiscoveryPrefix == "" {
			c.MQTT.DiscoveryPrefix = DefaultDiscoveryPrefix
		}
		if c.MQTT.KeepAlive == "" {
			c.MQTT.KeepAlive = DefaultMQTTKeepAlive
		}
	}

	for i := range c.LEDs {
		if c.LEDs[i].Chip == "" {
			c.LEDs[i].Chip = DefaultGPIOChip
		}
	}

	for i := range c.Devices {
		dev := &c.Devices[i]
		if dev.Interval == "" {
			dev.Interval = DefaultDeviceInterval
		}
		if dev.Domoticz.Method == "" {
			dev.Domoticz.Method = "udevice"
		}
		switch dev.Type {
		case "vindriktning":
			if dev.Baud == 0 {
				dev.Baud = DefaultVindriktningBaud
			}
			if dev.Offset == 0 {
				dev.Offset = DefaultVindriktningOffset
			}
			if dev.Domoticz.SensorType == "" {
				dev.Domoticz.SensorType = "custom"
			}
		case "ds18b20":
			if dev.W1Path == "" {
				dev.W1Path = DefaultW1Path
			}
			if dev.Domoticz.SensorType == "" {
				dev.Domoticz.SensorType = "temp"
			}
		case "dht22", "bmp280", "iio":
			if dev.IIOPath == "" {
				dev.IIOPath = DefaultIIOPath
			}
			if dev.Domoticz.SensorType == "" {
				dev.Domoticz.SensorType = iioSensorTypes[dev.Type]
			}
		}
		if dev.MQTT != nil {
			if dev.MQTT.Component == "" {
				dev.MQTT.Component = "sensor"
			}
			if dev.MQTT.ObjectID == "" {
				dev.MQTT.ObjectID = dev.Name
			}
			if dev.MQTT.UniqueID == "" {
				dev.MQTT.UniqueID = dev.Name
			}
		}
	}

	for i := range c.Buttons {
		b := &c.Buttons[i]
		if b.Chip == "" {
			b.Chip = DefaultGPIOChip
		}
		if b.SwitchCmd == "" {
			b.SwitchCmd = DefaultSwitchCmd
		}
		if b.Debounce == "" {
			b.Debounce = DefaultDebounce
		}
	}

	if c.Status != nil {
		if c.Status.ListenAddr == "" {
			c.Status.ListenAddr = DefaultStatusAddr
		}
		if c.Status.Port == 0 {
			c.Status.Port = DefaultStatusPort
		}
	}
}

// Validate checks the configuration for missing or conflicting settings.
// All problems are reported together.
func (c *ConfigData) Validate() error {
	var errs []error

	if c.Network.Associator != "none" && c.Network.SSID == "" {
		errs = append(errs, errors.New("network: ssid is required"))
	}
	switch c.Network.Associator {
	case "", "nmcli", "none":
	default:
		errs = append(errs, fmt.Errorf("network: unknown associator %q", c.Network.Associator))
	}
	if c.Network.PollAttempts < 0 {
		errs = append(errs, errors.New("network: poll-attempts must not be negative"))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: invalid port %d", c.Server.Port))
	}
	switch c.Server.PostFraming {
	case "", "header-block", "legacy-line-count":
	default:
		errs = append(errs, fmt.Errorf("server: unknown post-framing %q", c.Server.PostFraming))
	}
	switch c.Server.Mode {
	case "", "get", "post", "auto":
	default:
		errs = append(errs, fmt.Errorf("server: unknown mode %q", c.Server.Mode))
	}

	for field, value := range map[string]string{
		"network.poll-interval": c.Network.PollInterval,
		"server.read-timeout":   c.Server.ReadTimeout,
		"domoticz.timeout":      c.Domoticz.Timeout,
	} {
		if _, err := ParseDuration(value, 0); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if (len(c.Devices) > 0 || len(c.Buttons) > 0) && c.Domoticz.Host == "" {
		errs = append(errs, errors.New("domoticz: host is required when devices or buttons are configured"))
	}

	if c.MQTT != nil && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt: broker is required"))
	}

	seen := make(map[string]bool)
	for _, led := range c.LEDs {
		if led.Name == "" {
			errs = append(errs, errors.New("leds: name is required"))
			continue
		}
		if seen["led/"+led.Name] {
			errs = append(errs, fmt.Errorf("leds: duplicate name %q", led.Name))
		}
		seen["led/"+led.Name] = true
	}

	for _, dev := range c.Devices {
		if dev.Name == "" {
			errs = append(errs, errors.New("devices: name is required"))
			continue
		}
		if seen["device/"+dev.Name] {
			errs = append(errs, fmt.Errorf("devices: duplicate name %q", dev.Name))
		}
		seen["device/"+dev.Name] = true

		switch dev.Type {
		case "ds18b20", "dht22", "bmp280", "iio":
		case "vindriktning":
			if dev.SerialDevice == "" {
				errs = append(errs, fmt.Errorf("device %s: serial-device is required", dev.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("device %s: unknown type %q", dev.Name, dev.Type))
		}

		if _, err := ParseDuration(dev.Interval, 0); err != nil {
			errs = append(errs, fmt.Errorf("device %s: interval: %w", dev.Name, err))
		}

		switch dev.Domoticz.Method {
		case "", "udevice":
			if dev.Domoticz.IDX <= 0 {
				errs = append(errs, fmt.Errorf("device %s: domoticz idx is required for udevice", dev.Name))
			}
		case "customevent":
			if dev.Domoticz.Event == "" {
				errs = append(errs, fmt.Errorf("device %s: domoticz event is required for customevent", dev.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("device %s: unknown domoticz method %q", dev.Name, dev.Domoticz.Method))
		}

		if dev.MQTT != nil && c.MQTT == nil {
			errs = append(errs, fmt.Errorf("device %s: mqtt announcement requires an mqtt section", dev.Name))
		}
	}

	for _, b := range c.Buttons {
		if b.Name == "" {
			errs = append(errs, errors.New("buttons: name is required"))
			continue
		}
		if seen["button/"+b.Name] {
			errs = append(errs, fmt.Errorf("buttons: duplicate name %q", b.Name))
		}
		seen["button/"+b.Name] = true

		if b.LED != "" && !seen["led/"+b.LED] {
			errs = append(errs, fmt.Errorf("button %s: unknown led %q", b.Name, b.LED))
		}
		if b.Event == "" && b.IDX <= 0 {
			errs = append(errs, fmt.Errorf("button %s: idx is required", b.Name))
		}
		switch b.SwitchCmd {
		case "", "On", "Off", "Toggle":
		default:
			errs = append(errs, fmt.Errorf("button %s: unknown switch-cmd %q", b.Name, b.SwitchCmd))
		}
		if _, err := ParseDuration(b.Debounce, 0); err != nil {
			errs = append(errs, fmt.Errorf("button %s: debounce: %w", b.Name, err))
		}
	}

	return errors.Join(errs...)
}

// iioSensorTypes is the default Domoticz sensor type of each IIO device type.
var iioSensorTypes = map[string]string{
	"dht22":  "temp-hum",
	"bmp280": "temp-baro",
	"iio":    "temp",
}

// ParseDuration parses s as a time.Duration, returning def when s is empty
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
