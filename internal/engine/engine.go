// Package engine is domonode's minimal HTTP command server and Domoticz
// client. It associates the station, serves one client connection at a time
// with a fixed JSON envelope, and pushes values to Domoticz over json.htm.
package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/domonode/internal/gpio"
	"github.com/chrissnell/domonode/internal/metrics"
	"github.com/chrissnell/domonode/internal/wifi"
	"github.com/chrissnell/domonode/pkg/config"
	"go.uber.org/zap"
)

// Config holds the engine settings.
type Config struct {
	SSID     string
	Password string

	ListenAddr      string
	Port            int
	Backlog         int
	MaxRequestBytes int
	ReadTimeout     time.Duration
	PostFraming     Framing

	PollAttempts int
	PollInterval time.Duration

	UpstreamTimeout  time.Duration
	UpstreamUsername string
	UpstreamPassword string

	// Debug promotes phase transitions from debug to info level.
	Debug bool
}

// ConfigFromData builds an engine Config from loaded configuration.
// Defaults are expected to have been applied.
func ConfigFromData(c *config.ConfigData, debug bool) (Config, error) {
	pollInterval, err := config.ParseDuration(c.Network.PollInterval, time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("network.poll-interval: %w", err)
	}
	readTimeout, err := config.ParseDuration(c.Server.ReadTimeout, 0)
	if err != nil {
		return Config{}, fmt.Errorf("server.read-timeout: %w", err)
	}
	upstreamTimeout, err := config.ParseDuration(c.Domoticz.Timeout, 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("domoticz.timeout: %w", err)
	}

	return Config{
		SSID:             c.Network.SSID,
		Password:         c.Network.Password,
		ListenAddr:       c.Server.ListenAddr,
		Port:             c.Server.Port,
		Backlog:          c.Server.Backlog,
		MaxRequestBytes:  c.Server.MaxRequestBytes,
		ReadTimeout:      readTimeout,
		PostFraming:      Framing(c.Server.PostFraming),
		PollAttempts:     c.Network.PollAttempts,
		PollInterval:     pollInterval,
		UpstreamTimeout:  upstreamTimeout,
		UpstreamUsername: c.Domoticz.Username,
		UpstreamPassword: c.Domoticz.Password,
		Debug:            debug,
	}, nil
}

// State is the connection state recorded by Connect.
type State struct {
	Associated bool
	IP         net.IP
	ListenAddr string
}

// Engine is the command server and Domoticz client.
type Engine struct {
	cfg        Config
	station    wifi.Station
	indicator  gpio.Output
	logger     *zap.SugaredLogger
	httpClient *http.Client

	mu    sync.RWMutex
	state State
}

// New creates an Engine. A nil indicator is replaced by an in-memory one.
func New(cfg Config, station wifi.Station, indicator gpio.Output, logger *zap.SugaredLogger) *Engine {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = config.DefaultListenAddr
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = config.DefaultBacklog
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = config.DefaultMaxRequestBytes
	}
	if cfg.PostFraming == "" {
		cfg.PostFraming = FramingHeaderBlock
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = config.DefaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 10 * time.Second
	}
	if indicator == nil {
		indicator = gpio.NewVirtual()
	}

	e := &Engine{
		cfg:        cfg,
		station:    station,
		indicator:  indicator,
		logger:     logger.Named("engine"),
		httpClient: &http.Client{Timeout: cfg.UpstreamTimeout},
	}
	e.setIndicator(false)
	return e
}

// State returns a copy of the connection state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Indicator reports the status indicator value.
func (e *Engine) Indicator() bool {
	on, err := e.indicator.Get()
	return err == nil && on
}

// phase logs a connection phase transition. With debug on they are part of
// the normal log; otherwise they are only visible at debug level.
func (e *Engine) phase(template string, args ...interface{}) {
	if e.cfg.Debug {
		e.logger.Infof(template, args...)
	} else {
		e.logger.Debugf(template, args...)
	}
}

func (e *Engine) setIndicator(on bool) {
	if err := e.indicator.Set(on); err != nil {
		e.logger.Warnf("could not set status indicator: %v", err)
		return
	}
	metrics.Indicator.Set(metrics.BoolValue(on))
}

// Connect associates the station and binds the command listener.
func (e *Engine) Connect(ctx context.Context) (net.Listener, error) {
	if err := e.ConnectStation(ctx); err != nil {
		return nil, err
	}

	ln, err := listenTCP(e.cfg.ListenAddr, e.cfg.Port, e.cfg.Backlog)
	if err != nil {
		e.setIndicator(false)
		return nil, fmt.Errorf("%w: listen on %s:%d: %w", ErrNetworkConnectionFailed, e.cfg.ListenAddr, e.cfg.Port, err)
	}

	e.mu.Lock()
	e.state.ListenAddr = ln.Addr().String()
	e.mu.Unlock()

	e.phase("Network listening on %s", ln.Addr())
	return ln, nil
}

// ConnectStation associates the station without binding a listener. It polls
// the link status a bounded number of times and fails when link-up is not
// reached.
func (e *Engine) ConnectStation(ctx context.Context) error {
	e.phase("Network waiting for connection to %q...", e.cfg.SSID)

	if err := e.station.Associate(ctx, e.cfg.SSID, e.cfg.Password); err != nil {
		e.logger.Warnf("association request failed: %v", err)
	}

	for attempt := 0; attempt < e.cfg.PollAttempts; attempt++ {
		status, err := e.station.Status()
		if err != nil {
			e.logger.Debugf("link status: %v", err)
		}
		e.phase("Network link status %s (poll %d/%d)", status, attempt+1, e.cfg.PollAttempts)
		if status.Terminal() {
			break
		}

		select {
		case <-ctx.Done():
			e.setIndicator(false)
			return fmt.Errorf("%w: %w", ErrNetworkConnectionFailed, ctx.Err())
		case <-time.After(e.cfg.PollInterval):
		}
	}

	status, err := e.station.Status()
	if status != wifi.StatusUp {
		e.setIndicator(false)
		metrics.LinkUp.Set(0)
		if err != nil {
			return fmt.Errorf("%w: link status %s: %w", ErrNetworkConnectionFailed, status, err)
		}
		return fmt.Errorf("%w: link status %s", ErrNetworkConnectionFailed, status)
	}

	ip, err := e.station.Addr()
	if err != nil {
		e.logger.Warnf("link is up but no address could be read: %v", err)
	}

	e.mu.Lock()
	e.state.Associated = true
	e.state.IP = ip
	e.mu.Unlock()

	e.setIndicator(true)
	metrics.LinkUp.Set(1)
	e.phase("Network connected OK")
	e.phase("Network IP %s", ip)
	return nil
}
