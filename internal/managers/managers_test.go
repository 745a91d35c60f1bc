package managers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/domonode/internal/controllers/ledcontrol"
	"github.com/chrissnell/domonode/internal/domoticz"
	"github.com/chrissnell/domonode/internal/gpio"
	"github.com/chrissnell/domonode/internal/sensors"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	urls []string
}

func (s *recordingSender) SendGetRequest(_ context.Context, url string) (bool, map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	return true, map[string]any{"status": "OK"}, nil
}

func (s *recordingSender) SendPostRequest(context.Context, string, any) bool { return true }

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

func writeProbe(t *testing.T, dir string) {
	t.Helper()
	probe := filepath.Join(dir, "28-0000071cbc6f")
	if err := os.MkdirAll(probe, 0o755); err != nil {
		t.Fatal(err)
	}
	data := "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"
	if err := os.WriteFile(filepath.Join(probe, "w1_slave"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testDeps(sender domoticz.Sender) Dependencies {
	return Dependencies{Domoticz: domoticz.NewClient(domoticz.NewURLBuilder("http", "domoticz.local:8080"), sender)}
}

func TestDeviceManager(t *testing.T) {
	dir := t.TempDir()
	writeProbe(t, dir)

	cfg := &config.ConfigData{Devices: []config.DeviceData{
		{Name: "kitchen", Type: "ds18b20", W1Path: dir, Interval: "1h", Domoticz: config.DeviceDomoticzData{IDX: 4, SensorType: "temp"}},
		{Name: "attic", Type: "ds18b20", W1Path: dir, Interval: "1h", Domoticz: config.DeviceDomoticzData{IDX: 5, SensorType: "temp"}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	sender := &recordingSender{}

	dm, err := NewDeviceManager(ctx, &wg, cfg, testDeps(sender), nil, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}

	sources := dm.ReadingSources()
	if len(sources) != 2 || sources[0].Name() != "kitchen" || sources[1].Name() != "attic" {
		t.Fatalf("sources out of configuration order")
	}
	if dm.GetDevice("cellar") != nil {
		t.Error("GetDevice returned a reporter for an unknown device")
	}

	if err := dm.StartDevices(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for sender.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	if sender.count() != 2 {
		t.Errorf("updates = %d, want 2", sender.count())
	}
	if got := dm.GetDevice("kitchen").Last().Values["X280000071CBC6F"]; got != 23.125 {
		t.Errorf("kitchen reading = %v", got)
	}
}

func TestDeviceManagerErrors(t *testing.T) {
	tests := []struct {
		name    string
		devices []config.DeviceData
		factory SensorFactory
	}{
		{
			name: "duplicate name",
			devices: []config.DeviceData{
				{Name: "a", Type: "ds18b20", Domoticz: config.DeviceDomoticzData{IDX: 1, SensorType: "temp"}},
				{Name: "a", Type: "ds18b20", Domoticz: config.DeviceDomoticzData{IDX: 2, SensorType: "temp"}},
			},
		},
		{
			name:    "unknown type",
			devices: []config.DeviceData{{Name: "a", Type: "bme280"}},
		},
		{
			name:    "sensor factory error",
			devices: []config.DeviceData{{Name: "a", Type: "ds18b20"}},
			factory: func(config.DeviceData) (sensors.Sensor, error) { return nil, errors.New("no bus") },
		},
		{
			name:    "bad method",
			devices: []config.DeviceData{{Name: "a", Type: "ds18b20", Domoticz: config.DeviceDomoticzData{Method: "mqtt"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.ConfigData{Devices: tt.devices}
			if _, err := NewDeviceManager(context.Background(), &sync.WaitGroup{}, cfg, testDeps(&recordingSender{}), tt.factory, zap.NewNop().Sugar()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestControllerManager(t *testing.T) {
	leds := ledcontrol.NewHandler([]ledcontrol.LED{{Name: "led1", Output: gpio.NewVirtual()}}, zap.NewNop().Sugar())
	deps := testDeps(&recordingSender{})
	deps.LEDs = leds

	cfg := &config.ConfigData{
		Buttons: []config.ButtonData{
			{Name: "k1", IDX: 16, LED: "led1"},
			{Name: "k2", IDX: 17, SwitchCmd: "On"},
		},
		Status: &config.StatusData{ListenAddr: "127.0.0.1", Port: 18081},
	}

	cm, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, cfg, deps, nil, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if n := len(cm.(*controllerManager).controllers); n != 3 {
		t.Errorf("controllers = %d, want 3", n)
	}

	cfg.Buttons = append(cfg.Buttons, config.ButtonData{Name: "broken"})
	if _, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, cfg, deps, nil, zap.NewNop().Sugar()); err == nil {
		t.Error("expected an error for a button without idx")
	}
}
