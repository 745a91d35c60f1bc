package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{}
	if err := yaml.UnmarshalStrict(cfgFile, config); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// GetDevices returns device configurations
func (y *YAMLProvider) GetDevices() ([]DeviceData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Devices, nil
}

// GetLEDs returns LED configurations
func (y *YAMLProvider) GetLEDs() ([]LEDData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.LEDs, nil
}

// GetButtons returns button configurations
func (y *YAMLProvider) GetButtons() ([]ButtonData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Buttons, nil
}

// IsReadOnly returns true since YAML files are read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
