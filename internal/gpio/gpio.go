// Package gpio drives the board's digital lines: the status indicator, LEDs
// switched by the command server, and push buttons.
package gpio

import (
	"fmt"
	"sync"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// Output is a single digital output.
type Output interface {
	Set(on bool) error
	Get() (bool, error)
	Close() error
}

// Toggle inverts o and returns the new value.
func Toggle(o Output) (bool, error) {
	on, err := o.Get()
	if err != nil {
		return false, err
	}
	if err := o.Set(!on); err != nil {
		return on, err
	}
	return !on, nil
}

// Line is an Output backed by a GPIO character device line.
type Line struct {
	name string
	line *gpiod.Line
}

// RequestOutput requests offset on chip as an output, initially off.
func RequestOutput(chip string, offset int, activeLow bool) (*Line, error) {
	opts := []gpiod.LineReqOption{gpiod.AsOutput(0), gpiod.WithConsumer("domonode")}
	if activeLow {
		opts = append(opts, gpiod.AsActiveLow)
	}

	l, err := gpiod.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output %s:%d: %w", chip, offset, err)
	}
	return &Line{name: fmt.Sprintf("%s:%d", chip, offset), line: l}, nil
}

func (l *Line) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", l.name, err)
	}
	return nil
}

func (l *Line) Get() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", l.name, err)
	}
	return v == 1, nil
}

func (l *Line) Close() error {
	return l.line.Close()
}

// Virtual is an in-memory Output used when no line is configured.
type Virtual struct {
	mu  sync.Mutex
	on  bool
	err error
}

// NewVirtual returns a Virtual output, initially off.
func NewVirtual() *Virtual {
	return &Virtual{}
}

// FailWith makes subsequent Set and Get calls return err.
func (v *Virtual) FailWith(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
}

func (v *Virtual) Set(on bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return v.err
	}
	v.on = on
	return nil
}

func (v *Virtual) Get() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.on, v.err
}

func (v *Virtual) Close() error { return nil }

// Edge is a debounced level change on an input line.
type Edge struct {
	Pressed   bool
	Timestamp time.Duration
}

// InputConfig describes a button input.
type InputConfig struct {
	Chip      string
	Offset    int
	PullUp    bool
	ActiveLow bool
	Debounce  time.Duration
}

// Input is a watched GPIO input line.
type Input struct {
	line *gpiod.Line
}

// WatchInput requests an input line with edge detection and calls handler for
// every debounced edge. handler runs on the gpiocdev event goroutine.
func WatchInput(cfg InputConfig, handler func(Edge)) (*Input, error) {
	opts := []gpiod.LineReqOption{
		gpiod.AsInput,
		gpiod.WithBothEdges,
		gpiod.WithConsumer("domonode"),
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
			handler(Edge{
				Pressed:   evt.Type == gpiod.LineEventRisingEdge,
				Timestamp: evt.Timestamp,
			})
		}),
	}
	if cfg.PullUp {
		opts = append(opts, gpiod.WithPullUp)
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiod.AsActiveLow)
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiod.WithDebounce(cfg.Debounce))
	}

	l, err := gpiod.RequestLine(cfg.Chip, cfg.Offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request input %s:%d: %w", cfg.Chip, cfg.Offset, err)
	}
	return &Input{line: l}, nil
}

func (i *Input) Close() error {
	return i.line.Close()
}
