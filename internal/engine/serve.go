package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/chrissnell/domonode/internal/log"
	"github.com/chrissnell/domonode/internal/metrics"
)

// Handler computes the response for a parsed command.
type Handler interface {
	Handle(ctx context.Context, cmd Command) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd Command) Response

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) Response {
	return f(ctx, cmd)
}

// Mode selects the parser used for inbound requests.
type Mode string

const (
	ModeGet  Mode = "get"
	ModePost Mode = "post"
	// ModeAuto dispatches on the request method.
	ModeAuto Mode = "auto"
)

// GetClientConnection accepts one connection and reads its request. Reading
// stops once the request line of a GET, or the header block and declared body
// of a POST, have arrived, at EOF, or at the configured byte cap. On a read error the connection is still returned
// so the caller can close it.
func (e *Engine) GetClientConnection(ln net.Listener) (net.Conn, []byte, error) {
	return e.getClientConnection(ln, ModeAuto)
}

func (e *Engine) getClientConnection(ln net.Listener, mode Mode) (net.Conn, []byte, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: accept: %w", ErrConnectionIO, err)
	}
	e.phase("Network client connected from %s", conn.RemoteAddr())

	raw, err := e.readRequest(conn, mode)
	if err != nil {
		return conn, raw, fmt.Errorf("%w: read from %s: %w", ErrConnectionIO, conn.RemoteAddr(), err)
	}
	return conn, raw, nil
}

func (e *Engine) readRequest(conn net.Conn, mode Mode) ([]byte, error) {
	if e.cfg.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout)); err != nil {
			return nil, err
		}
	}

	limit := e.cfg.MaxRequestBytes
	buf := make([]byte, limit)
	n := 0
	for n < limit {
		r, err := conn.Read(buf[n:])
		n += r
		if requestReadable(buf[:n], mode) {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return buf[:n], err
		}
	}
	return buf[:n], nil
}

// ParseRequest parses raw according to mode and the configured POST framing.
func (e *Engine) ParseRequest(raw []byte, mode Mode) (Command, bool) {
	switch mode {
	case ModeGet:
		return ParseGetRequest(raw)
	case ModePost:
		return ParsePostRequest(raw, e.cfg.PostFraming)
	default:
		if requestMethod(raw) == "POST" {
			return ParsePostRequest(raw, e.cfg.PostFraming)
		}
		return ParseGetRequest(raw)
	}
}

// SendResponse writes resp as a 200 OK JSON reply and optionally closes the
// connection. The HTTP status is 200 whatever resp.Status says.
func (e *Engine) SendResponse(conn net.Conn, resp Response, closeConn bool) error {
	wire := resp.wire()
	e.phase("HTTP Response=%s", wire[len(responseHeader):])

	_, err := conn.Write(wire)
	if closeConn {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		e.phase("Network connection closed")
	}
	if err != nil {
		return fmt.Errorf("%w: write to %s: %w", ErrConnectionIO, conn.RemoteAddr(), err)
	}
	return nil
}

// Serve runs the accept loop on ln until ctx is cancelled. Only parsed
// commands reach h; everything else gets the unknown-command reply. A failed
// connection is closed, the status indicator is switched off and the loop
// carries on.
func (e *Engine) Serve(ctx context.Context, ln net.Listener, mode Mode, h Handler) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	for {
		conn, raw, err := e.getClientConnection(ln, mode)
		if err != nil {
			if ctx.Err() != nil {
				if conn != nil {
					conn.Close()
				}
				return nil
			}
			e.connectionFailed(conn, err)
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if conn == nil {
				// Accept failed; avoid spinning on a persistent error.
				time.Sleep(50 * time.Millisecond)
			}
			continue
		}

		e.exchange(ctx, conn, raw, mode, h)
	}
}

func (e *Engine) exchange(ctx context.Context, conn net.Conn, raw []byte, mode Mode, h Handler) {
	start := time.Now()
	remote := conn.RemoteAddr().String()

	cmd, ok := e.ParseRequest(raw, mode)
	e.phase("HTTP Command=%s", cmd)

	var resp Response
	if ok {
		resp = h.Handle(ctx, cmd)
	} else {
		e.logger.Warnf("invalid request from %s: %s", remote, cmd)
		resp = UnknownCommand(cmd.Title())
	}
	resp = resp.normalized()

	err := e.SendResponse(conn, resp, true)
	elapsed := time.Since(start)

	status := resp.Status
	if err != nil {
		e.connectionFailed(nil, err)
		status = "io_error"
	}

	log.LogExchange(remote, cmd.Title(), status, elapsed, err)
	metrics.Exchanges.WithLabelValues(status).Inc()
	metrics.ExchangeDuration.Observe(elapsed.Seconds())
}

func (e *Engine) connectionFailed(conn net.Conn, err error) {
	if conn != nil {
		conn.Close()
	}
	e.setIndicator(false)
	e.logger.Errorf("Network connection error: %v", err)
}
