// Package reporter samples a sensor on a schedule and pushes its readings to
// Domoticz and, when configured, to MQTT.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/domonode/internal/controllers"
	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/metrics"
	"github.com/chrissnell/domonode/internal/mqtt"
	"github.com/chrissnell/domonode/internal/sensors"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

// DomoticzClient is the part of domoticz.Client used by the reporter.
type DomoticzClient interface {
	UpdateDevice(ctx context.Context, idx, nvalue int, svalue string) error
	TriggerEvent(ctx context.Context, event string, data any) bool
}

// StatePublisher announces an entity and publishes its values.
type StatePublisher interface {
	Announce(e mqtt.Entity) error
	PublishState(e mqtt.Entity, values map[string]float64) error
}

// Controller reports one device.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	device    config.DeviceData
	interval  time.Duration
	sensor    sensors.Sensor
	domoticz  DomoticzClient
	publisher StatePublisher
	entity    mqtt.Entity
	logger    *zap.SugaredLogger

	mu   sync.Mutex
	last sensors.Reading
}

// NewReporterController builds the reporter for dev. publisher may be nil.
func NewReporterController(ctx context.Context, wg *sync.WaitGroup, dev config.DeviceData, sensor sensors.Sensor, dz DomoticzClient, publisher StatePublisher, logger *zap.SugaredLogger) (*Controller, error) {
	interval, err := config.ParseDuration(dev.Interval, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("device %s: interval: %w", dev.Name, err)
	}
	if interval == 0 {
		return nil, fmt.Errorf("device %s: interval must be positive", dev.Name)
	}

	switch dev.Domoticz.Method {
	case "", "udevice":
		if _, _, err := ComposeSValue(dev.Domoticz.SensorType, sensors.Reading{}); errors.Is(err, errUnknownSensorType) {
			return nil, fmt.Errorf("device %s: %w", dev.Name, err)
		}
	case "customevent":
		if err := controllers.ValidateRequiredFields(map[string]string{"domoticz.event": dev.Domoticz.Event}); err != nil {
			return nil, fmt.Errorf("device %s: %w", dev.Name, err)
		}
	default:
		return nil, fmt.Errorf("device %s: unknown domoticz method %q", dev.Name, dev.Domoticz.Method)
	}

	c := &Controller{
		ctx:      ctx,
		wg:       wg,
		device:   dev,
		interval: interval,
		sensor:   sensor,
		domoticz: dz,
		logger:   logger.Named("reporter").With("device", dev.Name),
	}
	if publisher != nil && dev.MQTT != nil {
		c.publisher = publisher
		c.entity = mqtt.EntityFromDevice(dev)
	}
	return c, nil
}

func (c *Controller) StartController() error {
	c.logger.Infof("Starting reporter (method %s, interval %v)...", c.method(), c.interval)

	if c.publisher != nil {
		if err := c.publisher.Announce(c.entity); err != nil {
			c.logger.Warnf("mqtt announcement failed: %v", err)
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.sensor.Close()
		controllers.RunPeriodicTask(c.ctx, controllers.PeriodicTask{
			Name:           "report " + c.device.Name,
			Interval:       c.interval,
			Task:           c.Report,
			RunImmediately: true,
		}, c.logger)
	}()
	return nil
}

// Last returns the most recent reading that was pushed.
func (c *Controller) Last() sensors.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Name is the device name.
func (c *Controller) Name() string {
	return c.device.Name
}

// Report takes one reading and pushes it.
func (c *Controller) Report() error {
	r, err := c.sensor.Read(c.ctx)
	if errors.Is(err, sensors.ErrUnchanged) {
		metrics.SensorReadings.WithLabelValues(c.device.Name, "unchanged").Inc()
		c.logger.Debug("reading unchanged, not reporting")
		return nil
	}
	if err != nil {
		metrics.SensorReadings.WithLabelValues(c.device.Name, "error").Inc()
		return fmt.Errorf("read: %w", err)
	}
	metrics.SensorReadings.WithLabelValues(c.device.Name, "ok").Inc()
	for k, v := range r.Values {
		metrics.SensorValue.WithLabelValues(c.device.Name, k).Set(v)
	}

	c.mu.Lock()
	c.last = r
	c.mu.Unlock()

	var errs []error
	if err := c.push(r); err != nil {
		errs = append(errs, err)
	}
	if c.publisher != nil {
		if err := c.publisher.PublishState(c.entity, r.Values); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) method() string {
	if c.device.Domoticz.Method == "" {
		return "udevice"
	}
	return c.device.Domoticz.Method
}

func (c *Controller) push(r sensors.Reading) error {
	d := c.device.Domoticz

	if c.method() == "customevent" {
		data := EventData(r, d.EventFields)
		c.logger.Debugf("customevent %s data=%v", d.Event, data)
		if !c.domoticz.TriggerEvent(c.ctx, d.Event, data) {
			return fmt.Errorf("customevent %s was not accepted", d.Event)
		}
		return nil
	}

	nvalue, svalue, err := ComposeSValue(d.SensorType, r)
	if err != nil {
		return err
	}
	c.logger.Debugf("udevice idx=%d nvalue=%d svalue=%s", d.IDX, nvalue, svalue)
	if err := c.domoticz.UpdateDevice(c.ctx, d.IDX, nvalue, svalue); err != nil {
		return fmt.Errorf("udevice idx %d: %w", d.IDX, err)
	}

	if d.AlertIDX > 0 {
		if pm25, ok := r.Values["pm25"]; ok {
			level := domoticz.AirQualityLevel(pm25)
			if err := c.domoticz.UpdateDevice(c.ctx, d.AlertIDX, level, domoticz.AirQualityText(pm25)); err != nil {
				return fmt.Errorf("alert idx %d: %w", d.AlertIDX, err)
			}
		}
	}
	return nil
}
