package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chrissnell/domonode/internal/constants"
	"github.com/chrissnell/domonode/internal/metrics"
)

// maxUpstreamBody caps how much of a Domoticz reply is read.
const maxUpstreamBody = 1 << 20

// ErrorPolicy decides what an outbound helper does with a failure.
type ErrorPolicy int

const (
	// PolicyRaise returns failures to the caller as *UpstreamError.
	PolicyRaise ErrorPolicy = iota
	// PolicySwallow logs failures and reports them as false.
	PolicySwallow
)

func (p ErrorPolicy) String() string {
	if p == PolicySwallow {
		return "swallow"
	}
	return "raise"
}

// SendGetRequest issues a GET to a Domoticz json.htm URL. ok is true when the
// peer answered with status OK. Transport and format failures are returned.
func (e *Engine) SendGetRequest(ctx context.Context, rawURL string) (bool, map[string]any, error) {
	return e.Send(ctx, http.MethodGet, rawURL, nil, PolicyRaise)
}

// SendPostRequest posts payload as JSON to a Domoticz json.htm URL. Any
// failure is logged and reported as false.
func (e *Engine) SendPostRequest(ctx context.Context, rawURL string, payload any) bool {
	ok, _, _ := e.Send(ctx, http.MethodPost, rawURL, payload, PolicySwallow)
	return ok
}

// Send performs one outbound request and applies policy to failures.
func (e *Engine) Send(ctx context.Context, method, rawURL string, payload any, policy ErrorPolicy) (bool, map[string]any, error) {
	target := strings.ReplaceAll(rawURL, " ", "%20")
	e.phase("Send %s request url=%s", method, target)

	body, err := e.do(ctx, method, target, payload)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(method, "error").Inc()
		if policy == PolicySwallow {
			e.logger.Errorf("Sending data failed: %v", err)
			return false, nil, nil
		}
		return false, nil, err
	}

	status, _ := body["status"].(string)
	e.phase("Send %s request status=%s", method, status)

	ok := status == constants.StateOK
	if ok {
		metrics.UpstreamRequests.WithLabelValues(method, "ok").Inc()
	} else {
		metrics.UpstreamRequests.WithLabelValues(method, "rejected").Inc()
	}
	return ok, body, nil
}

func (e *Engine) do(ctx context.Context, method, target string, payload any) (map[string]any, error) {
	fail := func(kind, err error) error {
		return &UpstreamError{Method: method, URL: target, Kind: kind, Err: err}
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fail(ErrNetworkSendFailed, fmt.Errorf("encode payload: %w", err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fail(ErrNetworkSendFailed, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cfg.UpstreamUsername != "" {
		req.SetBasicAuth(e.cfg.UpstreamUsername, e.cfg.UpstreamPassword)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fail(ErrNetworkSendFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fail(ErrNetworkSendFailed, fmt.Errorf("read response: %w", err))
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fail(ErrResponseFormatInvalid, fmt.Errorf("%w (HTTP %d): %q", err, resp.StatusCode, truncate(data, 200)))
	}
	if _, ok := body["status"].(string); !ok {
		return nil, fail(ErrResponseFormatInvalid, fmt.Errorf("no status in reply (HTTP %d)", resp.StatusCode))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
