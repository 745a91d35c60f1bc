package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
network:
  ssid: homenet
  password: secret
  interface: wlan1
server:
  port: 8080
  post-framing: legacy-line-count
indicator:
  line: 25
domoticz:
  host: 192.168.1.10:8080
mqtt:
  broker: tcp://192.168.1.10:1883
leds:
  - name: led1
    line: 17
  - name: led2
    chip: gpiochip1
    line: 27
    active-low: true
devices:
  - name: living-room
    type: ds18b20
    interval: 30s
    domoticz:
      idx: 12
  - name: air
    type: vindriktning
    serial-device: /dev/ttyS0
    domoticz:
      method: customevent
      event: airquality
    mqtt:
      device-class: pm25
      unit: "µg/m³"
      value-key: pm25
buttons:
  - name: hall
    line: 5
    pull-up: true
    idx: 42
status:
  port: 9000
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	provider := NewYAMLProvider(writeSample(t))
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network.SSID != "homenet" || cfg.Network.Interface != "wlan1" {
		t.Errorf("unexpected network section: %+v", cfg.Network)
	}
	if cfg.Server.Port != 8080 || cfg.Server.PostFraming != "legacy-line-count" {
		t.Errorf("unexpected server section: %+v", cfg.Server)
	}
	if cfg.Indicator == nil || cfg.Indicator.Line != 25 {
		t.Errorf("unexpected indicator: %+v", cfg.Indicator)
	}
	if len(cfg.LEDs) != 2 || cfg.LEDs[1].Chip != "gpiochip1" || !cfg.LEDs[1].ActiveLow {
		t.Errorf("unexpected leds: %+v", cfg.LEDs)
	}
	if len(cfg.Devices) != 2 || cfg.Devices[1].MQTT == nil || cfg.Devices[1].MQTT.ValueKey != "pm25" {
		t.Errorf("unexpected devices: %+v", cfg.Devices)
	}
	if len(cfg.Buttons) != 1 || !cfg.Buttons[0].PullUp || cfg.Buttons[0].IDX != 42 {
		t.Errorf("unexpected buttons: %+v", cfg.Buttons)
	}

	devices, err := provider.GetDevices()
	if err != nil || len(devices) != 2 {
		t.Errorf("GetDevices() = %d, %v", len(devices), err)
	}
	if !provider.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestYAMLProviderRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("network:\n  sid: typo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewYAMLProvider(path).LoadConfig(); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg, err := NewYAMLProvider(writeSample(t)).LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.ApplyDefaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"poll attempts", cfg.Network.PollAttempts, DefaultPollAttempts},
		{"associator", cfg.Network.Associator, "nmcli"},
		{"listen addr", cfg.Server.ListenAddr, "0.0.0.0"},
		{"explicit port kept", cfg.Server.Port, 8080},
		{"max request bytes", cfg.Server.MaxRequestBytes, 1024},
		{"backlog", cfg.Server.Backlog, 1},
		{"mode", cfg.Server.Mode, "auto"},
		{"indicator chip", cfg.Indicator.Chip, "gpiochip0"},
		{"domoticz timeout", cfg.Domoticz.Timeout, "10s"},
		{"discovery prefix", cfg.MQTT.DiscoveryPrefix, "domoticz"},
		{"explicit interval kept", cfg.Devices[0].Interval, "30s"},
		{"w1 path", cfg.Devices[0].W1Path, DefaultW1Path},
		{"ds18b20 sensor type", cfg.Devices[0].Domoticz.SensorType, "temp"},
		{"vindriktning baud", cfg.Devices[1].Baud, 9600},
		{"vindriktning offset", cfg.Devices[1].Offset, float64(5)},
		{"mqtt object id", cfg.Devices[1].MQTT.ObjectID, "air"},
		{"button switch cmd", cfg.Buttons[0].SwitchCmd, "Toggle"},
		{"status addr", cfg.Status.ListenAddr, "127.0.0.1"},
		{"explicit status port kept", cfg.Status.Port, 9000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on sample config: %v", err)
	}
}

func TestApplyDefaultsIIO(t *testing.T) {
	tests := []struct {
		typ        string
		sensorType string
	}{
		{"dht22", "temp-hum"},
		{"bmp280", "temp-baro"},
		{"iio", "temp"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			cfg := &ConfigData{Devices: []DeviceData{{Name: "env", Type: tt.typ, Domoticz: DeviceDomoticzData{IDX: 21}}}}
			cfg.ApplyDefaults()
			dev := cfg.Devices[0]
			if dev.IIOPath != DefaultIIOPath {
				t.Errorf("iio path = %q", dev.IIOPath)
			}
			if dev.Domoticz.SensorType != tt.sensorType {
				t.Errorf("sensor type = %q, want %q", dev.Domoticz.SensorType, tt.sensorType)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ConfigData)
		wantErr string
	}{
		{
			name:    "missing ssid",
			mutate:  func(c *ConfigData) { c.Network.SSID = "" },
			wantErr: "ssid is required",
		},
		{
			name: "no ssid needed without associator",
			mutate: func(c *ConfigData) {
				c.Network.SSID = ""
				c.Network.Associator = "none"
			},
		},
		{
			name:    "bad framing",
			mutate:  func(c *ConfigData) { c.Server.PostFraming = "chunked" },
			wantErr: "unknown post-framing",
		},
		{
			name:    "bad duration",
			mutate:  func(c *ConfigData) { c.Domoticz.Timeout = "soon" },
			wantErr: "domoticz.timeout",
		},
		{
			name:    "devices without host",
			mutate:  func(c *ConfigData) { c.Domoticz.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "duplicate led",
			mutate:  func(c *ConfigData) { c.LEDs[1].Name = "led1" },
			wantErr: `duplicate name "led1"`,
		},
		{
			name:    "udevice without idx",
			mutate:  func(c *ConfigData) { c.Devices[0].Domoticz.IDX = 0 },
			wantErr: "idx is required for udevice",
		},
		{
			name:    "unknown device type",
			mutate:  func(c *ConfigData) { c.Devices[0].Type = "bme680" },
			wantErr: "unknown type",
		},
		{
			name:    "mqtt device without broker section",
			mutate:  func(c *ConfigData) { c.MQTT = nil },
			wantErr: "requires an mqtt section",
		},
		{
			name:    "bad switch cmd",
			mutate:  func(c *ConfigData) { c.Buttons[0].SwitchCmd = "Blink" },
			wantErr: "unknown switch-cmd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewYAMLProvider(writeSample(t)).LoadConfig()
			if err != nil {
				t.Fatal(err)
			}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{"", 3 * time.Second, 3 * time.Second, false},
		{"250ms", 0, 250 * time.Millisecond, false},
		{"-1s", 0, 0, true},
		{"ten", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in, tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	cfg, err := NewYAMLProvider(writeSample(t)).LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.ApplyDefaults()

	dbPath := filepath.Join(t.TempDir(), "config.db")
	provider, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer provider.Close()

	if provider.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}

	if err := provider.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	// Saving twice replaces rather than duplicates.
	if err := provider.SaveConfig(cfg); err != nil {
		t.Fatalf("second SaveConfig: %v", err)
	}

	loaded, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, cfg)
	}

	leds, err := provider.GetLEDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(leds) != 2 || leds[0].Name != "led1" || leds[1].Name != "led2" {
		t.Errorf("leds out of order: %+v", leds)
	}
}
