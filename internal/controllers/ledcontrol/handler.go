// Package ledcontrol answers LED commands received by the command server.
package ledcontrol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chrissnell/domonode/internal/constants"
	"github.com/chrissnell/domonode/internal/engine"
	"github.com/chrissnell/domonode/internal/gpio"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

// LED is a named output. LEDs are numbered from 1 in configuration order.
type LED struct {
	Name   string
	Output gpio.Output
}

// Handler switches LEDs.
//
// GET forms:
//
//	/led1/on|off|toggle|state
//	/led/<N>/on|off|toggle|state
//	/<name>/on|off|toggle|state
//
// POST forms:
//
//	{"state": 0|1}                      first LED, message echoes the state
//	{"led": <name|N>, "cmd": "on", ...} message echoes the command
type Handler struct {
	mu     sync.Mutex
	leds   []LED
	logger *zap.SugaredLogger
}

func NewHandler(leds []LED, logger *zap.SugaredLogger) *Handler {
	return &Handler{leds: leds, logger: logger.Named("ledcontrol")}
}

// NewHandlerFromConfig requests a GPIO output for every configured LED.
func NewHandlerFromConfig(leds []config.LEDData, logger *zap.SugaredLogger) (*Handler, error) {
	var outputs []LED
	for _, l := range leds {
		out, err := gpio.RequestOutput(l.Chip, l.Line, l.ActiveLow)
		if err != nil {
			for _, o := range outputs {
				o.Output.Close()
			}
			return nil, fmt.Errorf("led %s: %w", l.Name, err)
		}
		outputs = append(outputs, LED{Name: l.Name, Output: out})
	}
	return NewHandler(outputs, logger), nil
}

// Close releases all LED outputs.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var firstErr error
	for _, l := range h.leds {
		if err := l.Output.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// States reports the current value of every LED by name.
func (h *Handler) States() map[string]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	states := make(map[string]bool, len(h.leds))
	for _, l := range h.leds {
		on, err := l.Output.Get()
		if err != nil {
			continue
		}
		states[l.Name] = on
	}
	return states
}

// SetLED switches the named LED.
func (h *Handler) SetLED(name string, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	led, ok := h.lookup(name)
	if !ok {
		return fmt.Errorf("unknown led %q", name)
	}
	return led.Output.Set(on)
}

func (h *Handler) Handle(ctx context.Context, cmd engine.Command) engine.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch cmd.Kind {
	case engine.KindPath:
		return h.handlePath(cmd)
	case engine.KindBody:
		return h.handleBody(cmd)
	default:
		return engine.UnknownCommand(cmd.Title())
	}
}

func (h *Handler) handlePath(cmd engine.Command) engine.Response {
	parts := strings.Split(strings.Trim(cmd.Path, "/"), "/")

	var ref, action string
	switch {
	case len(parts) == 3 && parts[0] == "led":
		ref, action = parts[1], parts[2]
	case len(parts) == 2:
		ref, action = parts[0], parts[1]
		if n := strings.TrimPrefix(ref, "led"); n != ref {
			if _, err := strconv.Atoi(n); err == nil {
				ref = n
			}
		}
	default:
		return engine.UnknownCommand(cmd.Path)
	}

	led, ok := h.lookup(ref)
	if !ok {
		return engine.UnknownCommand(cmd.Path)
	}

	on, err := h.apply(led, action)
	if errors.Is(err, errUnknownAction) {
		return engine.UnknownCommand(cmd.Path)
	}
	if err != nil {
		h.logger.Errorf("%s: %v", cmd.Path, err)
		return engine.Error(cmd.Path, err.Error())
	}
	return engine.OK(cmd.Path, stateMessage(on))
}

func (h *Handler) handleBody(cmd engine.Command) engine.Response {
	body, ok := cmd.Body.(map[string]any)
	if !ok {
		return engine.UnknownCommand(cmd.Title())
	}

	if state, ok := body["state"]; ok {
		return h.handleState(cmd, state)
	}

	name, hasLED := body["led"]
	action, hasCmd := body["cmd"].(string)
	if !hasLED || !hasCmd {
		return engine.UnknownCommand(cmd.Title())
	}

	led, ok := h.lookup(strings.ToLower(fmt.Sprint(name)))
	if !ok {
		return engine.Error(cmd.Title(), fmt.Sprintf("LED %v unknown.", name))
	}

	_, err := h.apply(led, action)
	if errors.Is(err, errUnknownAction) {
		return engine.Warning(cmd.Title(), fmt.Sprintf("Command %s not supported.", action))
	}
	if err != nil {
		h.logger.Errorf("%s: %v", cmd, err)
		return engine.Error(cmd.Title(), err.Error())
	}
	return engine.OK(cmd.Title(), action)
}

func (h *Handler) handleState(cmd engine.Command, state any) engine.Response {
	if len(h.leds) == 0 {
		return engine.UnknownCommand(cmd.Title())
	}

	var on bool
	switch v := state.(type) {
	case float64:
		if v != 0 && v != 1 {
			return engine.UnknownCommand(cmd.Title())
		}
		on = v == 1
	case bool:
		on = v
	default:
		return engine.UnknownCommand(cmd.Title())
	}

	if err := h.leds[0].Output.Set(on); err != nil {
		h.logger.Errorf("%s: %v", cmd, err)
		return engine.Error(cmd.Title(), err.Error())
	}
	return engine.OK(cmd.Title(), state)
}

var errUnknownAction = errors.New("unknown action")

func (h *Handler) apply(led LED, action string) (bool, error) {
	switch strings.ToLower(action) {
	case "on":
		return true, led.Output.Set(true)
	case "off":
		return false, led.Output.Set(false)
	case "toggle":
		return gpio.Toggle(led.Output)
	case "state":
		return led.Output.Get()
	default:
		return false, errUnknownAction
	}
}

// lookup resolves a 1-based index or a name.
func (h *Handler) lookup(ref string) (LED, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(h.leds) {
			return LED{}, false
		}
		return h.leds[n-1], true
	}
	for _, l := range h.leds {
		if strings.EqualFold(l.Name, ref) {
			return l, true
		}
	}
	return LED{}, false
}

func stateMessage(on bool) string {
	if on {
		return constants.MessageOn
	}
	return constants.MessageOff
}
