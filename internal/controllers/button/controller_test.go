package button

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/gpio"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

type switchCall struct {
	idx int
	cmd domoticz.SwitchCmd
}

type fakeDomoticz struct {
	mu       sync.Mutex
	switches []switchCall
	events   []any
	eventOK  bool
	err      error
}

func (f *fakeDomoticz) SwitchLight(_ context.Context, idx int, cmd domoticz.SwitchCmd, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, switchCall{idx, cmd})
	return f.err
}

func (f *fakeDomoticz) TriggerEvent(_ context.Context, _ string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, data)
	return f.eventOK
}

func (f *fakeDomoticz) switchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.switches)
}

type fakeLEDs struct {
	mu    sync.Mutex
	state map[string]bool
}

func (f *fakeLEDs) SetLED(name string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		f.state = map[string]bool{}
	}
	f.state[name] = on
	return nil
}

func newTestButton(t *testing.T, b config.ButtonData, dz DomoticzClient, leds LEDSetter) *Controller {
	t.Helper()
	c, err := NewButtonController(context.Background(), &sync.WaitGroup{}, b, dz, leds, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewButtonController() error: %v", err)
	}
	return c
}

func TestPressToggles(t *testing.T) {
	dz := &fakeDomoticz{}
	leds := &fakeLEDs{}
	c := newTestButton(t, config.ButtonData{Name: "k4", IDX: 16, SwitchCmd: "Toggle", LED: "led1"}, dz, leds)

	for i := 0; i < 3; i++ {
		if err := c.Press(); err != nil {
			t.Fatalf("press %d: %v", i, err)
		}
	}
	want := []switchCall{{16, domoticz.SwitchOn}, {16, domoticz.SwitchOff}, {16, domoticz.SwitchOn}}
	if !reflect.DeepEqual(dz.switches, want) {
		t.Errorf("switches = %v, want %v", dz.switches, want)
	}
	if !c.State() || !leds.state["led1"] {
		t.Errorf("state = %v, led = %v, want both on", c.State(), leds.state["led1"])
	}
}

func TestPressFixedCommand(t *testing.T) {
	dz := &fakeDomoticz{}
	c := newTestButton(t, config.ButtonData{Name: "off", IDX: 3, SwitchCmd: "Off"}, dz, nil)
	c.Press()
	c.Press()
	want := []switchCall{{3, domoticz.SwitchOff}, {3, domoticz.SwitchOff}}
	if !reflect.DeepEqual(dz.switches, want) {
		t.Errorf("switches = %v, want %v", dz.switches, want)
	}
}

func TestPressCustomEvent(t *testing.T) {
	dz := &fakeDomoticz{eventOK: true}
	c := newTestButton(t, config.ButtonData{Name: "k4", IDX: 16, Event: "button"}, dz, nil)

	if err := c.Press(); err != nil {
		t.Fatal(err)
	}
	want := []any{map[string]any{"idx": 16, "state": "On"}}
	if !reflect.DeepEqual(dz.events, want) {
		t.Errorf("events = %v, want %v", dz.events, want)
	}

	dz.eventOK = false
	if err := c.Press(); err == nil {
		t.Error("Press() succeeded although the event was not accepted")
	}
}

func TestPressSwitchError(t *testing.T) {
	dz := &fakeDomoticz{err: errors.New("unreachable")}
	c := newTestButton(t, config.ButtonData{Name: "k4", IDX: 16}, dz, nil)
	if err := c.Press(); err == nil {
		t.Error("expected an error")
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestStartControllerForwardsEdges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	dz := &fakeDomoticz{}

	c, err := NewButtonController(ctx, &wg, config.ButtonData{
		Name:         "k4",
		GPIOLineData: config.GPIOLineData{Chip: "gpiochip0", Line: 20},
		IDX:          16,
		Debounce:     "10ms",
	}, dz, nil, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}

	var handler func(gpio.Edge)
	var gotCfg gpio.InputConfig
	closed := make(chan struct{})
	c.watch = func(cfg gpio.InputConfig, h func(gpio.Edge)) (io.Closer, error) {
		gotCfg, handler = cfg, h
		return closerFunc(func() error { close(closed); return nil }), nil
	}

	if err := c.StartController(); err != nil {
		t.Fatal(err)
	}
	if gotCfg.Offset != 20 || gotCfg.Debounce != 10*time.Millisecond {
		t.Errorf("input config = %+v", gotCfg)
	}

	handler(gpio.Edge{Pressed: true})
	handler(gpio.Edge{Pressed: false})
	handler(gpio.Edge{Pressed: true})

	deadline := time.Now().Add(5 * time.Second)
	for dz.switchCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	if dz.switchCount() != 2 {
		t.Errorf("switch calls = %d, want 2", dz.switchCount())
	}
	select {
	case <-closed:
	default:
		t.Error("input not closed on shutdown")
	}
}

func TestNewButtonControllerValidation(t *testing.T) {
	tests := []struct {
		name string
		b    config.ButtonData
	}{
		{name: "no idx", b: config.ButtonData{Name: "x"}},
		{name: "bad switch-cmd", b: config.ButtonData{Name: "x", IDX: 1, SwitchCmd: "Set Level"}},
		{name: "bad debounce", b: config.ButtonData{Name: "x", IDX: 1, Debounce: "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewButtonController(context.Background(), &sync.WaitGroup{}, tt.b, &fakeDomoticz{}, nil, zap.NewNop().Sugar()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
