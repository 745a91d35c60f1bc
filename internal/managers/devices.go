package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/domonode/internal/controllers/reporter"
	"github.com/chrissnell/domonode/internal/controllers/status"
	"github.com/chrissnell/domonode/internal/sensors"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

// SensorFactory builds the sensor for a device.
type SensorFactory func(dev config.DeviceData) (sensors.Sensor, error)

// DeviceManager owns one reporter per configured device.
type DeviceManager struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	logger    *zap.SugaredLogger
	order     []string
	reporters map[string]*reporter.Controller
	mu        sync.RWMutex
}

// NewDeviceManager creates a DeviceManager populated with a reporter for every
// device in cfg. A nil newSensor uses sensors.New.
func NewDeviceManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, deps Dependencies, newSensor SensorFactory, logger *zap.SugaredLogger) (*DeviceManager, error) {
	if newSensor == nil {
		newSensor = sensors.New
	}

	dm := &DeviceManager{
		ctx:       ctx,
		wg:        wg,
		logger:    logger,
		reporters: make(map[string]*reporter.Controller),
	}

	var publisher reporter.StatePublisher
	if deps.Publisher != nil {
		publisher = deps.Publisher
	}

	for _, dev := range cfg.Devices {
		if _, exists := dm.reporters[dev.Name]; exists {
			return nil, fmt.Errorf("device %s configured twice", dev.Name)
		}

		logger.Infof("Initializing %s device [%v]", dev.Type, dev.Name)
		sensor, err := newSensor(dev)
		if err != nil {
			return nil, fmt.Errorf("error creating device [%s]: %w", dev.Name, err)
		}

		r, err := reporter.NewReporterController(ctx, wg, dev, sensor, deps.Domoticz, publisher, logger)
		if err != nil {
			sensor.Close()
			return nil, err
		}
		dm.reporters[dev.Name] = r
		dm.order = append(dm.order, dev.Name)
	}

	return dm, nil
}

// StartDevices starts every reporter.
func (d *DeviceManager) StartDevices() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, name := range d.order {
		d.logger.Infof("Starting device [%v]...", name)
		if err := d.reporters[name].StartController(); err != nil {
			return fmt.Errorf("failed to start device [%s]: %w", name, err)
		}
	}
	return nil
}

// GetDevice returns the reporter for name, or nil if there is none.
func (d *DeviceManager) GetDevice(name string) *reporter.Controller {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reporters[name]
}

// ReadingSources lists the reporters in configuration order.
func (d *DeviceManager) ReadingSources() []status.ReadingSource {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sources := make([]status.ReadingSource, 0, len(d.order))
	for _, name := range d.order {
		sources = append(sources, d.reporters[name])
	}
	return sources
}
