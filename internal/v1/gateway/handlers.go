package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/climanger/relay/internal/v1/auth"
	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gateway wires the REST and WebSocket surface to its dependencies: a
// pairing-code store, a signing secret, and the device room registry.
type Gateway struct {
	Pairing        auth.PairingStore
	JWTSecret      []byte
	Rooms          *RoomManager
	AllowedOrigins []string
	PinExpiry      time.Duration
	SessionExpiry  time.Duration
	MaxMobiles     int

	Version string
}

// Index implements `GET /`.
func (g *Gateway) Index(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"name":    "climanger-relay",
		"version": g.Version,
		"status":  "running",
	})
}

type createPinRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

type qrData struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	DeviceID string `json:"device_id"`
	Pin      string `json:"pin"`
	Relay    string `json:"relay"`
}

// CreatePin implements `POST /pin/create`.
func (g *Gateway) CreatePin(c *gin.Context) {
	var req createPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	if !auth.ValidDeviceID(req.DeviceID) {
		fail(c, http.StatusBadRequest, "malformed device_id")
		return
	}

	pin, err := auth.GeneratePin()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to generate pairing code")
		return
	}

	now := time.Now()
	expiresAt := now.Add(g.PinExpiry)
	code := auth.PairingCode{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Pin:        pin,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}

	if err := g.Pairing.Put(c.Request.Context(), req.DeviceID, code, g.PinExpiry); err != nil {
		logging.Error(c.Request.Context(), "failed to store pairing code", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to store pairing code")
		return
	}

	qr, _ := json.Marshal(qrData{
		Type:     "climanger",
		Version:  1,
		DeviceID: req.DeviceID,
		Pin:      pin,
		Relay:    requestOrigin(c),
	})

	metrics.PinsIssued.Inc()
	ok(c, http.StatusOK, gin.H{
		"pin":        pin,
		"expires_at": expiresAt.UnixMilli(),
		"qr_data":    string(qr),
	})
}

type authRequest struct {
	DeviceID string `json:"device_id"`
	Pin      string `json:"pin"`
}

// Auth implements `POST /auth`.
func (g *Gateway) Auth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	if !auth.ValidDeviceID(req.DeviceID) || !auth.ValidPin(req.Pin) {
		fail(c, http.StatusBadRequest, "malformed device_id or pin")
		return
	}

	ctx := c.Request.Context()
	code, err := g.Pairing.Get(ctx, req.DeviceID)
	if err != nil {
		metrics.AuthFailures.Inc()
		fail(c, http.StatusUnauthorized, "unknown or expired pairing code")
		return
	}
	if code.Pin != req.Pin {
		metrics.AuthFailures.Inc()
		fail(c, http.StatusUnauthorized, "pairing code mismatch")
		return
	}
	if time.Now().After(code.ExpiresAt) {
		_ = g.Pairing.Delete(ctx, req.DeviceID)
		metrics.AuthFailures.Inc()
		fail(c, http.StatusUnauthorized, "pairing code expired")
		return
	}

	// Single-use: delete before minting so a later redeemer sees ErrNotFound.
	// Get and Delete are separate calls, so two redeemers that both read the
	// code before either deletes it can each receive a token.
	if err := g.Pairing.Delete(ctx, req.DeviceID); err != nil {
		logging.Error(ctx, "failed to delete redeemed pairing code", zap.Error(err))
	}

	mobileID, err := auth.GenerateMobileID()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to mint token")
		return
	}
	sessionID, err := auth.GenerateSessionID()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to mint token")
		return
	}

	token, err := auth.MintToken(req.DeviceID, mobileID, sessionID, g.JWTSecret, g.SessionExpiry)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to mint token")
		return
	}

	metrics.TokensMinted.Inc()
	ok(c, http.StatusOK, gin.H{
		"token":       token,
		"expires_in":  int(g.SessionExpiry.Seconds()),
		"device_name": code.DeviceName,
	})
}

// Verify implements `GET /verify`.
func (g *Gateway) Verify(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if header == "" || !found {
		fail(c, http.StatusUnauthorized, "missing Authorization header")
		return
	}

	claims := auth.VerifyToken(tokenStr, g.JWTSecret)
	if claims == nil {
		fail(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"device_id":  claims.DeviceID,
		"mobile_id":  claims.MobileID,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.UnixMilli(),
	})
}

// Status implements `GET /device/:device_id/status`.
func (g *Gateway) Status(c *gin.Context) {
	deviceID := c.Param("device_id")
	if !auth.ValidDeviceID(deviceID) {
		fail(c, http.StatusBadRequest, "malformed device_id")
		return
	}

	r := g.Rooms.Get(deviceID)
	if r == nil {
		ok(c, http.StatusOK, gin.H{
			"device_id":          deviceID,
			"host_connected":     false,
			"mobile_attachments": []any{},
			"total_sockets":      0,
		})
		return
	}
	ok(c, http.StatusOK, r.Snapshot())
}

func requestOrigin(c *gin.Context) string {
	if o := c.GetHeader("Origin"); o != "" {
		return o
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
