package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CamillaDSPClient speaks the CamillaDSP websocket protocol: one JSON command,
// one JSON reply of the form {"<Command>": {"result": "Ok", "value": ...}}.
//
// The connection is opened lazily and dropped on any I/O error; the next call
// redials. Calls are serialized by mu.
type CamillaDSPClient struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	url         string
	logger      *slog.Logger
	readTimeout time.Duration
	dialer      websocket.Dialer
}

// NewCamillaDSPClient validates wsURL; no connection is made until Connect or the first call.
func NewCamillaDSPClient(wsURL string, readTimeout time.Duration, logger *slog.Logger) (*CamillaDSPClient, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL %q: scheme must be ws or wss", wsURL)
	}
	return &CamillaDSPClient{
		url:         wsURL,
		logger:      logger,
		readTimeout: readTimeout,
		dialer:      websocket.Dialer{HandshakeTimeout: 2 * time.Second},
	}, nil
}

// Connect dials CamillaDSP now instead of on first use.
func (c *CamillaDSPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *CamillaDSPClient) connectLocked(ctx context.Context) error {
	c.dropLocked()
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial camilladsp %s: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Info("connected to CamillaDSP", "url", c.url)
	return nil
}

func (c *CamillaDSPClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close closes the WebSocket connection
func (c *CamillaDSPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}

// call sends cmd and decodes the reply's value into out (when non-nil).
func (c *CamillaDSPClient) call(ctx context.Context, name string, cmd any, out any) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%s: marshal command: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.dropLocked()
		return fmt.Errorf("%s: write: %w", name, err)
	}

	c.conn.SetReadDeadline(deadline)
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		c.dropLocked()
		return fmt.Errorf("%s: read: %w", name, err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(message, &envelope); err != nil {
		return fmt.Errorf("%s: parse reply: %w", name, err)
	}
	raw, ok := envelope[name]
	if !ok {
		return fmt.Errorf("%s: unexpected reply %s", name, message)
	}

	var reply struct {
		Result string          `json:"result"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("%s: parse reply: %w", name, err)
	}
	if reply.Result != "Ok" {
		return fmt.Errorf("%s: camilladsp returned %q", name, reply.Result)
	}
	if out != nil {
		if len(reply.Value) == 0 {
			return fmt.Errorf("%s: reply has no value", name)
		}
		if err := json.Unmarshal(reply.Value, out); err != nil {
			return fmt.Errorf("%s: parse value: %w", name, err)
		}
	}

	c.logger.Debug("camilladsp", "command", name, "reply", string(raw))
	return nil
}

// GetVolume queries CamillaDSP for the current main volume in dB.
func (c *CamillaDSPClient) GetVolume(ctx context.Context) (float64, error) {
	var v float64
	err := c.call(ctx, "GetVolume", "GetVolume", &v)
	return v, err
}

func (c *CamillaDSPClient) SetVolume(ctx context.Context, db float64) error {
	return c.call(ctx, "SetVolume", map[string]any{"SetVolume": db}, nil)
}

func (c *CamillaDSPClient) GetMute(ctx context.Context) (bool, error) {
	var m bool
	err := c.call(ctx, "GetMute", "GetMute", &m)
	return m, err
}

func (c *CamillaDSPClient) SetMute(ctx context.Context, muted bool) error {
	return c.call(ctx, "SetMute", map[string]any{"SetMute": muted}, nil)
}

// ToggleMute returns the new mute state.
func (c *CamillaDSPClient) ToggleMute(ctx context.Context) (bool, error) {
	var m bool
	err := c.call(ctx, "ToggleMute", "ToggleMute", &m)
	return m, err
}

// ==============================
// camilladsp mixer backend
// ==============================

// CamillaMixer steps the CamillaDSP main volume by a fixed dB amount, clamped
// to [minDB, maxDB].
type CamillaMixer struct {
	client *CamillaDSPClient
	stepDB float64
	minDB  float64
	maxDB  float64
}

func NewCamillaMixer(client *CamillaDSPClient, stepDB, minDB, maxDB float64) *CamillaMixer {
	return &CamillaMixer{client: client, stepDB: stepDB, minDB: minDB, maxDB: maxDB}
}

func (m *CamillaMixer) Step(ctx context.Context, direction int) error {
	cur, err := m.client.GetVolume(ctx)
	if err != nil {
		return err
	}
	target := clampDB(cur+float64(direction)*m.stepDB, m.minDB, m.maxDB)
	if target == cur {
		return nil
	}
	return m.client.SetVolume(ctx, target)
}

func (m *CamillaMixer) ToggleMute(ctx context.Context) error {
	_, err := m.client.ToggleMute(ctx)
	return err
}

func (m *CamillaMixer) SetMute(ctx context.Context, muted bool) error {
	return m.client.SetMute(ctx, muted)
}

func (m *CamillaMixer) Close() error {
	return m.client.Close()
}

func clampDB(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var errNoMixer = errors.New("no mixer configured")
