package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/domonode/internal/controllers/button"
	"github.com/chrissnell/domonode/internal/controllers/ledcontrol"
	"github.com/chrissnell/domonode/internal/controllers/status"
	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/mqtt"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// Dependencies are the shared services handed to controllers. Publisher, LEDs
// and Engine may be nil.
type Dependencies struct {
	Domoticz  *domoticz.Client
	Publisher *mqtt.Publisher
	LEDs      *ledcontrol.Handler
	Engine    status.EngineSource
}

// NewControllerManager creates a new controller manager with a controller for
// every button and, when configured, the status API.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, c *config.ConfigData, deps Dependencies, devices []status.ReadingSource, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		config:      c,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	var leds button.LEDSetter
	if deps.LEDs != nil {
		leds = deps.LEDs
	}
	for _, b := range c.Buttons {
		controller, err := button.NewButtonController(ctx, wg, b, deps.Domoticz, leds, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	if c.Status != nil {
		sources := status.Sources{Engine: deps.Engine, Devices: devices}
		if deps.LEDs != nil {
			sources.LEDs = deps.LEDs
		}
		controller, err := status.NewStatusController(ctx, wg, *c.Status, sources, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	config      *config.ConfigData
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}
