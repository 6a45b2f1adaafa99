// Package relaywire is the host agent's relay-facing client: it dials the
// gateway's WebSocket upgrade endpoint as the host role, decodes/encodes the
// JSON control-message vocabulary, and bridges a ptyhost.Manager's
// output/exit callbacks to outbound terminal_output/session_close messages.
//
// Grounded on the teacher's WebSocket client dial/read-pump/write-pump
// shape, generalized from a video room subscriber to a single persistent
// host connection.
package relaywire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/ptyhost"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message type constants mirror the relay's wire vocabulary. Kept as an
// independent copy rather than importing the relay's room package: the host
// agent only needs the JSON shape, not the server's routing internals.
const (
	typeRegister         = "register"
	typeRegistered       = "registered"
	typePing             = "ping"
	typePong             = "pong"
	typeSessionCreate    = "session_create"
	typeSessionCreated   = "session_created"
	typeSessionClose     = "session_close"
	typeTerminalInput    = "terminal_input"
	typeTerminalOutput   = "terminal_output"
	typeTerminalResize   = "terminal_resize"
	typeMobileDisconnect = "mobile_disconnect"
)

// envelope mirrors the relay's wire envelope.
type envelope struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// Client owns one persistent host-role WebSocket connection and the local
// PTY manager it drives.
type Client struct {
	conn     *websocket.Conn
	pty      *ptyhost.Manager
	deviceID string

	writeMu sync.Mutex

	mu            sync.Mutex
	sessionMobile map[string]string // session_id -> owning mobile_id
}

// Dial connects to the relay as the host for deviceID. relayURL is the
// relay's base HTTP(S) URL, e.g. "http://localhost:8080".
func Dial(relayURL, deviceID string) (*Client, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("relaywire: invalid relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/connect/" + deviceID
	q := u.Query()
	q.Set("type", "host")
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("relaywire: dial failed: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	c := &Client{
		conn:          conn,
		deviceID:      deviceID,
		sessionMobile: make(map[string]string),
	}
	c.pty = ptyhost.NewManager(c.onPTYOutput, c.onPTYExit)
	return c, nil
}

// Register sends the initial `register` message declaring this device's
// display name.
func (c *Client) Register(deviceName string) error {
	return c.send(envelope{Type: typeRegister, Payload: map[string]any{
		"device_id":   c.deviceID,
		"device_name": deviceName,
	}})
}

// Run drains the connection until it errors or closes, dispatching every
// inbound frame. Blocking; intended to run on its own goroutine.
func (c *Client) Run() error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.pty.CloseAll()
			return err
		}
		c.dispatch(data)
	}
}

// Close terminates every PTY session and closes the underlying connection.
func (c *Client) Close() error {
	c.pty.CloseAll()
	return c.conn.Close()
}

func (c *Client) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logging.Warn(nil, "relaywire: dropping malformed message", zap.Error(err))
		return
	}

	switch env.Type {
	case typeRegistered:
		// Acknowledgement only; nothing to do.

	case typePing:
		_ = c.send(envelope{Type: typePong, Payload: env.Payload})

	case typeSessionCreate:
		c.handleSessionCreate(env)

	case typeTerminalInput:
		c.handleTerminalInput(env)

	case typeTerminalResize:
		c.handleTerminalResize(env)

	case typeSessionClose:
		c.handleSessionCloseRequest(env)

	case typeMobileDisconnect:
		c.handleMobileDisconnect(env)

	default:
		logging.Warn(nil, "relaywire: dropping unhandled message type", zap.String("type", env.Type))
	}
}

func (c *Client) handleSessionCreate(env envelope) {
	sessionID, _ := env.Payload["session_id"].(string)
	mobileID, _ := env.Payload["request_from"].(string)
	cwd, _ := env.Payload["cwd"].(string)
	shell, _ := env.Payload["shell"].(string)
	cols := floatField(env.Payload, "cols", 80)
	rows := floatField(env.Payload, "rows", 24)

	if sessionID == "" || mobileID == "" {
		_ = c.send(envelope{Type: typeSessionCreated, Payload: map[string]any{
			"request_to": mobileID,
			"session_id": sessionID,
			"success":    false,
			"error":      "missing session_id or request_from",
		}})
		return
	}

	ok := c.pty.CreateSession(sessionID, mobileID, cwd, shell, uint16(cols), uint16(rows))
	if ok {
		c.mu.Lock()
		c.sessionMobile[sessionID] = mobileID
		c.mu.Unlock()
	}

	_ = c.send(envelope{Type: typeSessionCreated, Payload: map[string]any{
		"request_to": mobileID,
		"session_id": sessionID,
		"success":    ok,
	}})
}

func (c *Client) handleTerminalInput(env envelope) {
	sessionID, _ := env.Payload["session_id"].(string)
	dataStr, _ := env.Payload["data"].(string)
	if sessionID == "" {
		return
	}
	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		logging.Warn(nil, "relaywire: dropping terminal_input with undecodable data", zap.String("session_id", sessionID))
		return
	}
	c.pty.Write(sessionID, data)
}

func (c *Client) handleTerminalResize(env envelope) {
	sessionID, _ := env.Payload["session_id"].(string)
	if sessionID == "" {
		return
	}
	cols := floatField(env.Payload, "cols", 0)
	rows := floatField(env.Payload, "rows", 0)
	if cols == 0 || rows == 0 {
		return
	}
	c.pty.Resize(sessionID, uint16(cols), uint16(rows))
}

func (c *Client) handleSessionCloseRequest(env envelope) {
	sessionID, _ := env.Payload["session_id"].(string)
	if sessionID == "" {
		return
	}
	c.pty.CloseSession(sessionID)
	c.mu.Lock()
	delete(c.sessionMobile, sessionID)
	c.mu.Unlock()
}

func (c *Client) handleMobileDisconnect(env envelope) {
	mobileID, _ := env.Payload["mobile_id"].(string)
	if mobileID == "" {
		return
	}
	closed := c.pty.CloseSessionsForMobile(mobileID)
	if closed == 0 {
		return
	}
	c.mu.Lock()
	for sid, mid := range c.sessionMobile {
		if mid == mobileID {
			delete(c.sessionMobile, sid)
		}
	}
	c.mu.Unlock()
}

// onPTYOutput is the ptyhost.OutputFunc bridge: every byte read from a
// session's PTY becomes a terminal_output message addressed to the owning
// mobile. Base64-encoded since payload.data must be a valid JSON string and
// PTY bytes are not guaranteed to be valid UTF-8.
func (c *Client) onPTYOutput(sessionID, mobileID string, data []byte) {
	_ = c.send(envelope{Type: typeTerminalOutput, Payload: map[string]any{
		"to":         mobileID,
		"session_id": sessionID,
		"data":       base64.StdEncoding.EncodeToString(data),
	}})
}

// onPTYExit is the ptyhost.ExitFunc bridge: process exit becomes a
// session_close notification to the owning mobile.
func (c *Client) onPTYExit(sessionID, mobileID string) {
	c.mu.Lock()
	delete(c.sessionMobile, sessionID)
	c.mu.Unlock()

	_ = c.send(envelope{Type: typeSessionClose, Payload: map[string]any{
		"to":         mobileID,
		"session_id": sessionID,
	}})
}

func (c *Client) send(env envelope) error {
	env.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func floatField(payload map[string]any, key string, fallback float64) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return fallback
}
