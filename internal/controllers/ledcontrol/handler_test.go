package ledcontrol

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/chrissnell/domonode/internal/engine"
	"github.com/chrissnell/domonode/internal/gpio"
	"go.uber.org/zap"
)

func newTestHandler() (*Handler, []*gpio.Virtual) {
	red, yellow, green := gpio.NewVirtual(), gpio.NewVirtual(), gpio.NewVirtual()
	h := NewHandler([]LED{
		{Name: "red", Output: red},
		{Name: "yellow", Output: yellow},
		{Name: "green", Output: green},
	}, zap.NewNop().Sugar())
	return h, []*gpio.Virtual{red, yellow, green}
}

func path(p string) engine.Command {
	return engine.Command{Kind: engine.KindPath, Path: p}
}

func body(b map[string]any) engine.Command {
	return engine.Command{Kind: engine.KindBody, Body: b}
}

func TestHandlePath(t *testing.T) {
	tests := []struct {
		name    string
		paths   []string
		want    engine.Response
		wantLED int
		wantOn  bool
	}{
		{
			name:    "led1 on",
			paths:   []string{"/led1/on"},
			want:    engine.OK("/led1/on", "On"),
			wantLED: 0, wantOn: true,
		},
		{
			name:    "led1 off after on",
			paths:   []string{"/led1/on", "/led1/off"},
			want:    engine.OK("/led1/off", "Off"),
			wantLED: 0, wantOn: false,
		},
		{
			name:    "state",
			paths:   []string{"/led1/on", "/led1/state"},
			want:    engine.OK("/led1/state", "On"),
			wantLED: 0, wantOn: true,
		},
		{
			name:    "numbered",
			paths:   []string{"/led/2/on"},
			want:    engine.OK("/led/2/on", "On"),
			wantLED: 1, wantOn: true,
		},
		{
			name:    "by name toggle",
			paths:   []string{"/green/toggle"},
			want:    engine.OK("/green/toggle", "On"),
			wantLED: 2, wantOn: true,
		},
		{
			name:  "unknown sub-command",
			paths: []string{"/led1/x"},
			want:  engine.UnknownCommand("/led1/x"),
		},
		{
			name:  "out of range",
			paths: []string{"/led/4/on"},
			want:  engine.UnknownCommand("/led/4/on"),
		},
		{
			name:  "root",
			paths: []string{"/"},
			want:  engine.UnknownCommand("/"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, leds := newTestHandler()
			var got engine.Response
			for _, p := range tt.paths {
				got = h.Handle(context.Background(), path(p))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Handle() = %+v, want %+v", got, tt.want)
			}
			if tt.want.Status == "OK" {
				on, _ := leds[tt.wantLED].Get()
				if on != tt.wantOn {
					t.Errorf("led %d = %v, want %v", tt.wantLED, on, tt.wantOn)
				}
			}
		})
	}
}

func TestHandleStateBody(t *testing.T) {
	h, leds := newTestHandler()

	on := map[string]any{"state": float64(1)}
	got := h.Handle(context.Background(), body(on))
	if want := engine.OK(on, float64(1)); !reflect.DeepEqual(got, want) {
		t.Errorf("Handle() = %+v, want %+v", got, want)
	}
	if v, _ := leds[0].Get(); !v {
		t.Error("first LED not switched on")
	}

	off := map[string]any{"state": float64(0)}
	h.Handle(context.Background(), body(off))
	if v, _ := leds[0].Get(); v {
		t.Error("first LED not switched off")
	}

	bad := map[string]any{"state": "vvv"}
	if got := h.Handle(context.Background(), body(bad)); got.Status != "ERROR" {
		t.Errorf("state %q answered %s", "vvv", got.Status)
	}
}

func TestHandleLEDCommandBody(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		wantStatus string
		wantMsg    any
	}{
		{name: "on by name", body: map[string]any{"led": "Yellow", "cmd": "on", "value": float64(0)}, wantStatus: "OK", wantMsg: "on"},
		{name: "toggle by number", body: map[string]any{"led": float64(3), "cmd": "toggle"}, wantStatus: "OK", wantMsg: "toggle"},
		{name: "unsupported", body: map[string]any{"led": "red", "cmd": "blink"}, wantStatus: "WARNING", wantMsg: "Command blink not supported."},
		{name: "unknown led", body: map[string]any{"led": "blue", "cmd": "on"}, wantStatus: "ERROR", wantMsg: "LED blue unknown."},
		{name: "no cmd", body: map[string]any{"led": "red"}, wantStatus: "ERROR", wantMsg: "Unknown command."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler()
			got := h.Handle(context.Background(), body(tt.body))
			if got.Status != tt.wantStatus || got.Message != tt.wantMsg {
				t.Errorf("Handle() = %+v, want status %s message %v", got, tt.wantStatus, tt.wantMsg)
			}
			if !reflect.DeepEqual(got.Title, tt.body) {
				t.Errorf("title = %v, want the request body", got.Title)
			}
		})
	}
}

func TestHandleOutputFailure(t *testing.T) {
	h, leds := newTestHandler()
	leds[0].FailWith(errors.New("line busy"))

	got := h.Handle(context.Background(), path("/led1/on"))
	if got.Status != "ERROR" || got.Message != "line busy" {
		t.Errorf("Handle() = %+v", got)
	}
}

func TestSetLEDAndStates(t *testing.T) {
	h, _ := newTestHandler()
	if err := h.SetLED("yellow", true); err != nil {
		t.Fatal(err)
	}
	if err := h.SetLED("blue", true); err == nil {
		t.Error("SetLED() accepted an unknown LED")
	}
	want := map[string]bool{"red": false, "yellow": true, "green": false}
	if got := h.States(); !reflect.DeepEqual(got, want) {
		t.Errorf("States() = %v, want %v", got, want)
	}
}
