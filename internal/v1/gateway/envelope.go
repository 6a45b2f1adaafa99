// Package gateway implements the HTTP surface described in §4.B: REST
// pairing/auth endpoints, origin policy, and the WebSocket upgrade hand-off
// into a device room.
//
// Grounded on the teacher's cmd/v1/session/main.go router wiring and
// internal/v1/session.Hub.ServeWs (gin.Engine, CheckOrigin-based upgrader,
// JSON error bodies), generalized from JWT-per-room video conferencing
// auth to PIN-pairing-per-device terminal relay auth.
package gateway

import "github.com/gin-gonic/gin"

// envelope is the uniform REST response shape required by §4.B / §6:
// {success, data?, error?}.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Error: message})
}
