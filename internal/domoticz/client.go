package domoticz

import (
	"context"
	"errors"
	"fmt"
)

// ErrRejected means Domoticz answered but did not report status OK.
var ErrRejected = errors.New("domoticz rejected the request")

// Sender performs the HTTP exchange with Domoticz.
type Sender interface {
	SendGetRequest(ctx context.Context, rawURL string) (bool, map[string]any, error)
	SendPostRequest(ctx context.Context, rawURL string, payload any) bool
}

// Client issues typed Domoticz calls through a Sender.
type Client struct {
	urls   URLBuilder
	sender Sender
}

func NewClient(urls URLBuilder, sender Sender) *Client {
	return &Client{urls: urls, sender: sender}
}

// URLs returns the builder used by c.
func (c *Client) URLs() URLBuilder {
	return c.urls
}

// UpdateDevice sets a device value with udevice.
func (c *Client) UpdateDevice(ctx context.Context, idx, nvalue int, svalue string) error {
	return c.get(ctx, c.urls.UpdateDevice(idx, nvalue, svalue))
}

// SwitchLight switches a light or switch device.
func (c *Client) SwitchLight(ctx context.Context, idx int, cmd SwitchCmd, level int) error {
	return c.get(ctx, c.urls.SwitchLight(idx, cmd, level))
}

// TriggerEvent fires a custom event with data as the POSTed JSON body.
// Failures are logged by the sender and reported as false.
func (c *Client) TriggerEvent(ctx context.Context, event string, data any) bool {
	u, _ := c.urls.CustomEvent(event, nil)
	return c.sender.SendPostRequest(ctx, u, data)
}

// TriggerEventGet fires a custom event with data in the query string.
func (c *Client) TriggerEventGet(ctx context.Context, event string, data any) error {
	u, err := c.urls.CustomEvent(event, data)
	if err != nil {
		return err
	}
	return c.get(ctx, u)
}

func (c *Client) get(ctx context.Context, u string) error {
	ok, body, err := c.sender.SendGetRequest(ctx, u)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: status %v, message %v", ErrRejected, body["status"], body["message"])
	}
	return nil
}
