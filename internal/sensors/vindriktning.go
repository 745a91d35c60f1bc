package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/pkg/aqi"
	serial "github.com/tarm/goserial"
)

// FrameSize is the length of a PM1006 measurement frame.
const FrameSize = 20

var frameHeader = [3]byte{0x16, 0x11, 0x0B}

var (
	ErrFrameLength   = errors.New("invalid frame length")
	ErrFrameHeader   = errors.New("invalid frame header")
	ErrFrameChecksum = errors.New("invalid frame checksum")
)

// DecodeFrame validates a PM1006 frame and returns its PM2.5 value in µg/m³.
func DecodeFrame(frame []byte) (int, error) {
	if len(frame) != FrameSize {
		return 0, fmt.Errorf("%w: %d", ErrFrameLength, len(frame))
	}
	if frame[0] != frameHeader[0] || frame[1] != frameHeader[1] || frame[2] != frameHeader[2] {
		return 0, ErrFrameHeader
	}
	var sum byte
	for _, b := range frame {
		sum += b
	}
	if sum != 0 {
		return 0, fmt.Errorf("%w: %02X", ErrFrameChecksum, sum)
	}
	return int(frame[5])*256 + int(frame[6]), nil
}

// ReadFrame scans r for the next valid frame. Bytes before a header and
// frames with a bad checksum are skipped.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	frame := make([]byte, FrameSize)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameHeader[0] {
			continue
		}
		next, err := r.Peek(2)
		if err != nil {
			return nil, err
		}
		if next[0] != frameHeader[1] || next[1] != frameHeader[2] {
			continue
		}
		frame[0] = b
		if _, err := io.ReadFull(r, frame[1:]); err != nil {
			return nil, err
		}
		if _, err := DecodeFrame(frame); err != nil {
			continue
		}
		return frame, nil
	}
}

// PortOpener opens the UART the sensor is wired to.
type PortOpener func() (io.ReadWriteCloser, error)

// SerialPort returns a PortOpener for device at baud.
func SerialPort(device string, baud int) PortOpener {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	}
}

// Vindriktning reads the PM1006 particle sensor inside an IKEA Vindriktning.
// The sensor broadcasts a burst of frames every 20 to 30 seconds, so Read
// blocks until the next frame arrives.
type Vindriktning struct {
	name   string
	open   PortOpener
	offset float64
	now    func() time.Time

	mu       sync.Mutex
	port     io.ReadWriteCloser
	reader   *bufio.Reader
	previous float64
	reported bool
}

func NewVindriktning(name, device string, baud int, offset float64) *Vindriktning {
	return NewVindriktningWithPort(name, SerialPort(device, baud), offset)
}

func NewVindriktningWithPort(name string, open PortOpener, offset float64) *Vindriktning {
	return &Vindriktning{name: name, open: open, offset: offset, now: time.Now}
}

func (v *Vindriktning) Name() string {
	return v.name
}

// Read returns the PM2.5 value under "pm25", its Domoticz level under "level"
// and the EPA index under "aqi".
// ErrUnchanged is returned until the value moves by more than the offset.
func (v *Vindriktning) Read(ctx context.Context) (Reading, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.port == nil {
		port, err := v.open()
		if err != nil {
			return Reading{}, fmt.Errorf("open port: %w", err)
		}
		v.port = port
		v.reader = bufio.NewReaderSize(port, 64)
	}

	port := v.port
	stop := context.AfterFunc(ctx, func() { port.Close() })
	frame, err := ReadFrame(v.reader)
	if !stop() || err != nil {
		v.closePort()
		if ctx.Err() != nil {
			return Reading{}, ctx.Err()
		}
		if err == nil {
			err = errors.New("port closed")
		}
		return Reading{}, fmt.Errorf("read frame: %w", err)
	}

	pm, _ := DecodeFrame(frame)
	pm25 := float64(pm)
	if v.reported && math.Abs(pm25-v.previous) <= v.offset {
		return Reading{}, ErrUnchanged
	}
	v.previous = pm25
	v.reported = true

	return Reading{
		Device:    v.name,
		Timestamp: v.now(),
		Main:      "pm25",
		Values: map[string]float64{
			"pm25":  pm25,
			"level": float64(domoticz.AirQualityLevel(pm25)),
			"aqi":   float64(aqi.PM25(pm25)),
		},
	}, nil
}

func (v *Vindriktning) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closePort()
}

func (v *Vindriktning) closePort() error {
	if v.port == nil {
		return nil
	}
	err := v.port.Close()
	v.port = nil
	v.reader = nil
	return err
}
