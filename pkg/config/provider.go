package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDevices() ([]DeviceData, error)
	GetLEDs() ([]LEDData, error)
	GetButtons() ([]ButtonData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Network   NetworkData   `json:"network" yaml:"network"`
	Server    ServerData    `json:"server" yaml:"server"`
	Indicator *GPIOLineData `json:"indicator,omitempty" yaml:"indicator,omitempty"`
	Domoticz  DomoticzData  `json:"domoticz" yaml:"domoticz"`
	MQTT      *MQTTData     `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	LEDs      []LEDData     `json:"leds,omitempty" yaml:"leds,omitempty"`
	Devices   []DeviceData  `json:"devices,omitempty" yaml:"devices,omitempty"`
	Buttons   []ButtonData  `json:"buttons,omitempty" yaml:"buttons,omitempty"`
	Status    *StatusData   `json:"status,omitempty" yaml:"status,omitempty"`
}

// NetworkData holds the Wi-Fi station settings
type NetworkData struct {
	SSID         string `json:"ssid" yaml:"ssid"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty"`
	Interface    string `json:"interface,omitempty" yaml:"interface,omitempty"`
	Associator   string `json:"associator,omitempty" yaml:"associator,omitempty"`
	NMCLIPath    string `json:"nmcli_path,omitempty" yaml:"nmcli-path,omitempty"`
	PollAttempts int    `json:"poll_attempts,omitempty" yaml:"poll-attempts,omitempty"`
	PollInterval string `json:"poll_interval,omitempty" yaml:"poll-interval,omitempty"`
}

// ServerData holds the inbound command server settings
type ServerData struct {
	ListenAddr      string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
	Port            int    `json:"port,omitempty" yaml:"port,omitempty"`
	Backlog         int    `json:"backlog,omitempty" yaml:"backlog,omitempty"`
	MaxRequestBytes int    `json:"max_request_bytes,omitempty" yaml:"max-request-bytes,omitempty"`
	ReadTimeout     string `json:"read_timeout,omitempty" yaml:"read-timeout,omitempty"`
	PostFraming     string `json:"post_framing,omitempty" yaml:"post-framing,omitempty"`
	Mode            string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// GPIOLineData identifies one GPIO line on a character device chip
type GPIOLineData struct {
	Chip      string `json:"chip,omitempty" yaml:"chip,omitempty"`
	Line      int    `json:"line" yaml:"line"`
	ActiveLow bool   `json:"active_low,omitempty" yaml:"active-low,omitempty"`
}

// DomoticzData holds the upstream Domoticz server settings
type DomoticzData struct {
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Scheme   string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// MQTTData holds the MQTT broker settings used for Domoticz auto-discovery
type MQTTData struct {
	Broker          string `json:"broker" yaml:"broker"`
	ClientID        string `json:"client_id,omitempty" yaml:"client-id,omitempty"`
	Username        string `json:"username,omitempty" yaml:"username,omitempty"`
	Password        string `json:"password,omitempty" yaml:"password,omitempty"`
	DiscoveryPrefix string `json:"discovery_prefix,omitempty" yaml:"discovery-prefix,omitempty"`
	KeepAlive       string `json:"keep_alive,omitempty" yaml:"keep-alive,omitempty"`
}

// LEDData describes one LED controllable through the command server
type LEDData struct {
	Name         string `json:"name" yaml:"name"`
	GPIOLineData `json:",inline" yaml:",inline"`
}

// DeviceData describes one sensor and where its readings are pushed
type DeviceData struct {
	Name         string             `json:"name" yaml:"name"`
	Type         string             `json:"type" yaml:"type"`
	Interval     string             `json:"interval,omitempty" yaml:"interval,omitempty"`
	SerialDevice string             `json:"serial_device,omitempty" yaml:"serial-device,omitempty"`
	Baud         int                `json:"baud,omitempty" yaml:"baud,omitempty"`
	W1Path       string             `json:"w1_path,omitempty" yaml:"w1-path,omitempty"`
	IIOPath      string             `json:"iio_path,omitempty" yaml:"iio-path,omitempty"`
	Offset       float64            `json:"offset,omitempty" yaml:"offset,omitempty"`
	Domoticz     DeviceDomoticzData `json:"domoticz" yaml:"domoticz"`
	MQTT         *DeviceMQTTData    `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// DeviceDomoticzData selects how a device's readings reach Domoticz
type DeviceDomoticzData struct {
	IDX         int               `json:"idx,omitempty" yaml:"idx,omitempty"`
	AlertIDX    int               `json:"alert_idx,omitempty" yaml:"alert-idx,omitempty"`
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`
	SensorType  string            `json:"sensor_type,omitempty" yaml:"sensor-type,omitempty"`
	Event       string            `json:"event,omitempty" yaml:"event,omitempty"`
	EventFields map[string]string `json:"event_fields,omitempty" yaml:"event-fields,omitempty"`
}

// DeviceMQTTData holds the auto-discovery announcement for a device
type DeviceMQTTData struct {
	Component   string `json:"component,omitempty" yaml:"component,omitempty"`
	ObjectID    string `json:"object_id,omitempty" yaml:"object-id,omitempty"`
	DeviceClass string `json:"device_class,omitempty" yaml:"device-class,omitempty"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	ValueKey    string `json:"value_key,omitempty" yaml:"value-key,omitempty"`
	UniqueID    string `json:"unique_id,omitempty" yaml:"unique-id,omitempty"`
}

// ButtonData describes a push button that switches a Domoticz device
type ButtonData struct {
	Name         string `json:"name" yaml:"name"`
	GPIOLineData `json:",inline" yaml:",inline"`
	PullUp       bool   `json:"pull_up,omitempty" yaml:"pull-up,omitempty"`
	IDX          int    `json:"idx" yaml:"idx"`
	SwitchCmd    string `json:"switch_cmd,omitempty" yaml:"switch-cmd,omitempty"`
	Event        string `json:"event,omitempty" yaml:"event,omitempty"`
	Debounce     string `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	LED          string `json:"led,omitempty" yaml:"led,omitempty"`
}

// StatusData holds the status API listener settings
type StatusData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	EnableCORS bool   `json:"enable_cors,omitempty" yaml:"enable-cors,omitempty"`
}
