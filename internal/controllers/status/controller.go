// Package status serves a read-only HTTP API describing the node: link
// state, LED states, last sensor readings, recent exchanges and metrics.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chrissnell/domonode/internal/constants"
	"github.com/chrissnell/domonode/internal/engine"
	"github.com/chrissnell/domonode/internal/log"
	"github.com/chrissnell/domonode/internal/metrics"
	"github.com/chrissnell/domonode/internal/sensors"
	"github.com/chrissnell/domonode/pkg/config"
	"github.com/chrissnell/domonode/pkg/responseformat"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// EngineSource exposes the engine's connection state.
type EngineSource interface {
	State() engine.State
	Indicator() bool
}

// LEDSource exposes LED states by name.
type LEDSource interface {
	States() map[string]bool
}

// ReadingSource exposes the last reading of one device.
type ReadingSource interface {
	Name() string
	Last() sensors.Reading
}

// Sources is what the status API reports on. Any field may be nil.
type Sources struct {
	Engine  EngineSource
	LEDs    LEDSource
	Devices []ReadingSource
}

// NodeStatus is the /api/status document.
type NodeStatus struct {
	Version    string          `json:"version"`
	Uptime     string          `json:"uptime"`
	Associated bool            `json:"associated"`
	IP         string          `json:"ip,omitempty"`
	ListenAddr string          `json:"listen_addr,omitempty"`
	Indicator  bool            `json:"indicator"`
	LEDs       map[string]bool `json:"leds,omitempty"`
}

// DeviceStatus is one entry of /api/devices.
type DeviceStatus struct {
	Name      string             `json:"name"`
	Timestamp *time.Time         `json:"timestamp,omitempty"`
	Values    map[string]float64 `json:"values,omitempty"`
}

// Controller runs the status API server.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	Server    http.Server
	sources   Sources
	formatter *responseformat.Formatter
	started   time.Time
	logger    *zap.SugaredLogger
}

// NewStatusController builds the status API for sc.
func NewStatusController(ctx context.Context, wg *sync.WaitGroup, sc config.StatusData, sources Sources, logger *zap.SugaredLogger) (*Controller, error) {
	if sc.ListenAddr == "" {
		sc.ListenAddr = config.DefaultStatusAddr
	}
	if sc.Port == 0 {
		sc.Port = config.DefaultStatusPort
	}
	if sc.Port < 0 || sc.Port > 65535 {
		return nil, fmt.Errorf("status: invalid port %d", sc.Port)
	}

	c := &Controller{
		ctx:       ctx,
		wg:        wg,
		sources:   sources,
		formatter: responseformat.NewFormatter(),
		started:   time.Now(),
		logger:    logger.Named("status"),
	}

	var handler http.Handler = c.Router()
	if sc.EnableCORS {
		handler = handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		)(handler)
	}
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)

	c.Server.Addr = net.JoinHostPort(sc.ListenAddr, strconv.Itoa(sc.Port))
	c.Server.Handler = handler
	c.Server.ReadHeaderTimeout = 10 * time.Second
	return c, nil
}

// StartController starts the status API server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting status API on %s...", c.Server.Addr)

	ln, err := net.Listen("tcp", c.Server.Addr)
	if err != nil {
		return fmt.Errorf("status API listen: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("status API server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the status API...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/status", c.getStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/devices", c.getDevices).Methods(http.MethodGet)
	router.HandleFunc("/api/devices/{name}", c.getDevice).Methods(http.MethodGet)
	router.HandleFunc("/api/exchanges", c.getExchanges).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return router
}

func (c *Controller) getStatus(w http.ResponseWriter, r *http.Request) {
	s := NodeStatus{
		Version: constants.Version,
		Uptime:  time.Since(c.started).Round(time.Second).String(),
	}
	if c.sources.Engine != nil {
		st := c.sources.Engine.State()
		s.Associated = st.Associated
		if st.IP != nil {
			s.IP = st.IP.String()
		}
		s.ListenAddr = st.ListenAddr
		s.Indicator = c.sources.Engine.Indicator()
	}
	if c.sources.LEDs != nil {
		s.LEDs = c.sources.LEDs.States()
	}
	c.write(w, r, s)
}

func (c *Controller) getDevices(w http.ResponseWriter, r *http.Request) {
	devices := make([]DeviceStatus, 0, len(c.sources.Devices))
	for _, d := range c.sources.Devices {
		devices = append(devices, deviceStatus(d))
	}
	c.write(w, r, devices)
}

func (c *Controller) getDevice(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, d := range c.sources.Devices {
		if d.Name() == name {
			c.write(w, r, deviceStatus(d))
			return
		}
	}
	c.formatter.WriteError(w, r, http.StatusNotFound, fmt.Sprintf("device %s not found", name))
}

func (c *Controller) getExchanges(w http.ResponseWriter, r *http.Request) {
	entries := log.GetExchangeLogBuffer().GetEntries()

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.formatter.WriteError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}
	c.write(w, r, entries)
}

func (c *Controller) write(w http.ResponseWriter, r *http.Request, data any) {
	if err := c.formatter.WriteResponse(w, r, data, map[string]string{"Cache-Control": "no-store"}); err != nil {
		c.logger.Errorf("writing %s response: %v", r.URL.Path, err)
	}
}

func deviceStatus(d ReadingSource) DeviceStatus {
	s := DeviceStatus{Name: d.Name()}
	last := d.Last()
	if !last.Timestamp.IsZero() {
		ts := last.Timestamp
		s.Timestamp = &ts
		s.Values = last.Values
	}
	return s
}
