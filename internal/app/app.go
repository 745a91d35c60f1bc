package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/domonode/internal/controllers/ledcontrol"
	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/engine"
	"github.com/chrissnell/domonode/internal/gpio"
	"github.com/chrissnell/domonode/internal/log"
	"github.com/chrissnell/domonode/internal/managers"
	"github.com/chrissnell/domonode/internal/mqtt"
	"github.com/chrissnell/domonode/internal/wifi"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	debug          bool
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, debug bool, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		debug:          debug,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Bring up the network and bind the command listener
	indicator, err := newIndicator(cfg.Indicator)
	if err != nil {
		return err
	}
	defer indicator.Close()

	engineCfg, err := engine.ConfigFromData(cfg, a.debug)
	if err != nil {
		return err
	}
	eng := engine.New(engineCfg, newStation(cfg.Network), indicator, a.logger)
	ln, err := eng.Connect(ctx)
	if err != nil {
		return err
	}

	leds, err := ledcontrol.NewHandlerFromConfig(cfg.LEDs, a.logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer leds.Close()

	deps := managers.Dependencies{
		Domoticz: domoticz.NewClient(domoticz.NewURLBuilder(cfg.Domoticz.Scheme, cfg.Domoticz.Host), eng),
		LEDs:     leds,
		Engine:   eng,
	}

	if cfg.MQTT != nil {
		mqttCfg, err := mqtt.ConfigFromData(cfg.MQTT)
		if err != nil {
			ln.Close()
			return fmt.Errorf("mqtt: %w", err)
		}
		publisher, err := mqtt.NewPublisher(mqttCfg, a.logger)
		if err != nil {
			a.logger.Warnf("MQTT discovery disabled: %v", err)
		} else {
			defer publisher.Close()
			deps.Publisher = publisher
		}
	}

	// Initialize the device manager
	dm, err := managers.NewDeviceManager(ctx, &wg, cfg, deps, nil, a.logger)
	if err != nil {
		ln.Close()
		return err
	}

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, cfg, deps, dm.ReadingSources(), a.logger)
	if err != nil {
		ln.Close()
		return err
	}

	if err := dm.StartDevices(); err != nil {
		cancel()
		ln.Close()
		wg.Wait()
		return err
	}
	if err := cm.StartControllers(); err != nil {
		cancel()
		ln.Close()
		wg.Wait()
		return err
	}

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErr <- eng.Serve(ctx, ln, engine.Mode(cfg.Server.Mode), leds)
	}()

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var runErr error

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("command server stopped: %w", err)
		}
		log.Info("command server stopped, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return runErr
}

func newIndicator(line *config.GPIOLineData) (gpio.Output, error) {
	if line == nil {
		return gpio.NewVirtual(), nil
	}
	out, err := gpio.RequestOutput(line.Chip, line.Line, line.ActiveLow)
	if err != nil {
		return nil, fmt.Errorf("status indicator: %w", err)
	}
	return out, nil
}

func newStation(n config.NetworkData) wifi.Station {
	var associator wifi.Associator
	switch n.Associator {
	case "nmcli":
		associator = wifi.NewNMCLIAssociator(n.NMCLIPath)
	default:
		associator = wifi.NoopAssociator{}
	}
	return wifi.NewNetlinkStation(n.Interface, nil, associator)
}
