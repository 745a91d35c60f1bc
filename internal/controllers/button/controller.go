// Package button forwards GPIO push button presses to Domoticz.
package button

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chrissnell/domonode/internal/constants"
	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/gpio"
	"github.com/chrissnell/domonode/internal/metrics"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

const pressQueue = 8

// DomoticzClient is the part of domoticz.Client used by buttons.
type DomoticzClient interface {
	SwitchLight(ctx context.Context, idx int, cmd domoticz.SwitchCmd, level int) error
	TriggerEvent(ctx context.Context, event string, data any) bool
}

// LEDSetter mirrors the switch state on an LED.
type LEDSetter interface {
	SetLED(name string, on bool) error
}

// WatchFunc starts watching an input line.
type WatchFunc func(cfg gpio.InputConfig, handler func(gpio.Edge)) (io.Closer, error)

func watchGPIO(cfg gpio.InputConfig, handler func(gpio.Edge)) (io.Closer, error) {
	in, err := gpio.WatchInput(cfg, handler)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Controller handles one button. Each press either sets the switch state
// (switch-cmd On/Off) or flips it (Toggle) and sends the resulting state.
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	cfg      config.ButtonData
	debounce time.Duration
	domoticz DomoticzClient
	leds     LEDSetter
	watch    WatchFunc
	presses  chan struct{}
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	state bool
}

// NewButtonController builds the controller for b. leds may be nil.
func NewButtonController(ctx context.Context, wg *sync.WaitGroup, b config.ButtonData, dz DomoticzClient, leds LEDSetter, logger *zap.SugaredLogger) (*Controller, error) {
	debounce, err := config.ParseDuration(b.Debounce, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("button %s: debounce: %w", b.Name, err)
	}
	switch domoticz.SwitchCmd(b.SwitchCmd) {
	case "", domoticz.SwitchOn, domoticz.SwitchOff, domoticz.SwitchToggle:
	default:
		return nil, fmt.Errorf("button %s: unsupported switch-cmd %q", b.Name, b.SwitchCmd)
	}
	if b.Event == "" && b.IDX <= 0 {
		return nil, fmt.Errorf("button %s: idx is required", b.Name)
	}

	return &Controller{
		ctx:      ctx,
		wg:       wg,
		cfg:      b,
		debounce: debounce,
		domoticz: dz,
		leds:     leds,
		watch:    watchGPIO,
		presses:  make(chan struct{}, pressQueue),
		logger:   logger.Named("button").With("button", b.Name),
	}, nil
}

func (c *Controller) StartController() error {
	c.logger.Infof("Starting button on %s:%d...", c.cfg.Chip, c.cfg.Line)

	input, err := c.watch(gpio.InputConfig{
		Chip:      c.cfg.Chip,
		Offset:    c.cfg.Line,
		PullUp:    c.cfg.PullUp,
		ActiveLow: c.cfg.ActiveLow,
		Debounce:  c.debounce,
	}, c.HandleEdge)
	if err != nil {
		return fmt.Errorf("button %s: %w", c.cfg.Name, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer input.Close()
		for {
			select {
			case <-c.ctx.Done():
				c.logger.Info("cancellation request received, stopping button")
				return
			case <-c.presses:
				if err := c.Press(); err != nil {
					c.logger.Errorf("press: %v", err)
				}
			}
		}
	}()
	return nil
}

// HandleEdge queues a press for every pressed edge. Presses arriving while
// the queue is full are dropped.
func (c *Controller) HandleEdge(e gpio.Edge) {
	if !e.Pressed {
		return
	}
	select {
	case c.presses <- struct{}{}:
	default:
		c.logger.Warn("press queue full, dropping press")
	}
}

// State reports the switch state last sent.
func (c *Controller) State() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Press sends the next switch state to Domoticz and mirrors it on the LED.
func (c *Controller) Press() error {
	c.mu.Lock()
	switch domoticz.SwitchCmd(c.cfg.SwitchCmd) {
	case domoticz.SwitchOn:
		c.state = true
	case domoticz.SwitchOff:
		c.state = false
	default:
		c.state = !c.state
	}
	on := c.state
	c.mu.Unlock()

	metrics.ButtonPresses.WithLabelValues(c.cfg.Name).Inc()

	msg := constants.MessageOff
	if on {
		msg = constants.MessageOn
	}
	c.logger.Infof("pressed, state=%s", msg)

	if c.leds != nil && c.cfg.LED != "" {
		if err := c.leds.SetLED(c.cfg.LED, on); err != nil {
			c.logger.Warnf("could not mirror state on led %s: %v", c.cfg.LED, err)
		}
	}

	if c.cfg.Event != "" {
		data := map[string]any{"idx": c.cfg.IDX, "state": msg}
		if !c.domoticz.TriggerEvent(c.ctx, c.cfg.Event, data) {
			return fmt.Errorf("customevent %s was not accepted", c.cfg.Event)
		}
		return nil
	}
	return c.domoticz.SwitchLight(c.ctx, c.cfg.IDX, domoticz.SwitchCmd(msg), 0)
}
