package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/climanger/relay/internal/v1/auth"
	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/room"
	"github.com/climanger/relay/internal/v1/transport"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// newUpgrader builds the upgrader used for one connection; CheckOrigin
// enforces the same allow-list policy as the REST CORS middleware, grounded
// on the teacher's Hub.ServeWs upgrader construction.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" {
					return true
				}
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any { return make([]byte, 4096) },
		},
	}
}

// Connect implements `GET /connect/:device_id?type=host|mobile[&token=…]`.
func (g *Gateway) Connect(c *gin.Context) {
	deviceID := c.Param("device_id")
	if !auth.ValidDeviceID(deviceID) {
		fail(c, http.StatusBadRequest, "malformed device_id")
		return
	}

	connType := c.Query("type")
	var role transport.Role
	var mobileID string

	switch connType {
	case "host":
		role = transport.RoleHost
	case "mobile":
		role = transport.RoleMobile
		tokenStr := c.Query("token")
		if tokenStr == "" {
			fail(c, http.StatusUnauthorized, "missing token")
			return
		}
		claims := auth.VerifyToken(tokenStr, g.JWTSecret)
		if claims == nil {
			fail(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if claims.DeviceID != deviceID {
			fail(c, http.StatusUnauthorized, "token does not match device")
			return
		}
		mobileID = claims.MobileID
	default:
		fail(c, http.StatusBadRequest, "type must be host or mobile")
		return
	}

	r := g.Rooms.GetOrCreate(deviceID)

	if role == transport.RoleMobile && r.MobileCapReached() {
		fail(c, http.StatusTooManyRequests, "device has reached its mobile connection limit")
		return
	}

	if !isWebSocketUpgrade(c.Request) {
		fail(c, http.StatusUpgradeRequired, "expected a WebSocket upgrade request")
		return
	}

	upgrader := newUpgrader(g.AllowedOrigins)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	now := time.Now()
	attachment := transport.Attachment{
		ConnectionID: uuid.NewString(),
		Role:         role,
		MobileID:     mobileID,
		ConnectedAt:  now,
		LastActivity: now,
	}
	sock := transport.NewSocket(conn, attachment)

	switch role {
	case transport.RoleHost:
		r.AdmitHost(c.Request.Context(), sock)
	case transport.RoleMobile:
		r.AdmitMobile(c.Request.Context(), mobileID, sock)
	}

	go sock.WritePump()
	go readPump(r, sock)
}

// readPump drains conn's read side until it errors, dispatching every
// frame to the room's router and deregistering the socket on exit.
func readPump(r *room.Room, sock *transport.Socket) {
	ctx := context.Background()
	defer func() {
		r.RemoveSocket(ctx, sock)
		sock.Close()
	}()

	for {
		_, data, err := sock.Conn.ReadMessage()
		if err != nil {
			return
		}
		r.Router(ctx, sock, data)
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}
