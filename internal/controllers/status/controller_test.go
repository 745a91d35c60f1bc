package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/domonode/internal/engine"
	"github.com/chrissnell/domonode/internal/log"
	"github.com/chrissnell/domonode/internal/sensors"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

type fakeEngine struct{}

func (fakeEngine) State() engine.State {
	return engine.State{Associated: true, IP: net.IPv4(192, 168, 1, 50), ListenAddr: "0.0.0.0:80"}
}

func (fakeEngine) Indicator() bool { return true }

type fakeLEDs map[string]bool

func (f fakeLEDs) States() map[string]bool { return f }

type fakeDevice struct {
	name string
	last sensors.Reading
}

func (f fakeDevice) Name() string          { return f.name }
func (f fakeDevice) Last() sensors.Reading { return f.last }

func newTestController(t *testing.T, cors bool) *Controller {
	t.Helper()
	c, err := NewStatusController(context.Background(), &sync.WaitGroup{}, config.StatusData{EnableCORS: cors}, Sources{
		Engine: fakeEngine{},
		LEDs:   fakeLEDs{"red": true},
		Devices: []ReadingSource{
			fakeDevice{name: "air", last: sensors.Reading{Device: "air", Timestamp: time.Unix(1700000000, 0), Values: map[string]float64{"pm25": 19}}},
			fakeDevice{name: "probe"},
		},
	}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetStatus(t *testing.T) {
	c := newTestController(t, false)
	rec := get(t, c.Server.Handler, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got NodeStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Associated || got.IP != "192.168.1.50" || got.ListenAddr != "0.0.0.0:80" || !got.Indicator {
		t.Errorf("status = %+v", got)
	}
	if !got.LEDs["red"] {
		t.Errorf("leds = %v", got.LEDs)
	}
	if got.Version == "" {
		t.Error("version missing")
	}
}

func TestGetDevices(t *testing.T) {
	c := newTestController(t, false)

	var devices []DeviceStatus
	if err := json.Unmarshal(get(t, c.Server.Handler, "/api/devices").Body.Bytes(), &devices); err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[0].Values["pm25"] != 19 || devices[1].Timestamp != nil {
		t.Errorf("devices = %+v", devices)
	}

	var one DeviceStatus
	if err := json.Unmarshal(get(t, c.Server.Handler, "/api/devices/air").Body.Bytes(), &one); err != nil {
		t.Fatal(err)
	}
	if one.Name != "air" {
		t.Errorf("device = %+v", one)
	}

	if rec := get(t, c.Server.Handler, "/api/devices/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d", rec.Code)
	}
}

func TestGetExchanges(t *testing.T) {
	c := newTestController(t, false)
	log.LogExchange("10.0.0.2:5000", "/led1/on", "OK", time.Millisecond, nil)
	log.LogExchange("10.0.0.2:5001", "/led1/off", "OK", time.Millisecond, nil)

	var entries []log.LogEntry
	if err := json.Unmarshal(get(t, c.Server.Handler, "/api/exchanges?limit=1").Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Fields["command"] != "/led1/off" {
		t.Errorf("entries = %+v", entries)
	}

	if rec := get(t, c.Server.Handler, "/api/exchanges?limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestController(t, false)
	rec := get(t, c.Server.Handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "domonode_link_up") {
		t.Error("metrics output does not include domonode collectors")
	}
}

func TestCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://dashboard.local")

	rec := httptest.NewRecorder()
	newTestController(t, true).Server.Handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS header missing with enable-cors")
	}

	rec = httptest.NewRecorder()
	newTestController(t, false).Server.Handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS header set without enable-cors")
	}
}

func TestStartController(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	c, err := NewStatusController(ctx, &wg, config.StatusData{ListenAddr: "127.0.0.1", Port: 0}, Sources{}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	// Port 0 falls back to the default; bind an ephemeral one instead.
	c.Server.Addr = "127.0.0.1:0"
	if err := c.StartController(); err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("status server did not shut down")
	}
}
