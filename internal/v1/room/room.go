// Package room implements the device room: the in-memory multiplex
// between one host and up to N mobile attachments for a single device
// identifier, with hibernation-safe routing built on top of
// internal/v1/transport's socket registry.
//
// Grounded on the teacher's internal/v1/room.Room (mutex-guarded struct,
// per-room actor, NewRoom(id, onEmpty, ...) constructor shape), generalized
// from a multi-participant conferencing room to a single-host/many-mobile
// pairing room.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/metrics"
	"github.com/climanger/relay/internal/v1/transport"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Room is the per-device actor. All mutation of its cache happens inside
// its own methods, which may be invoked concurrently from different
// sockets' read pumps — mu serializes them, standing in for the "single
// logical consumer" the spec describes (see DESIGN.md for the
// actor-per-room realisation chosen here).
type Room struct {
	DeviceID string

	mu         sync.RWMutex
	host       *transport.Socket
	mobiles    map[string]*transport.Socket // mobile_id -> socket
	deviceName string
	publicKey  string

	registry   *transport.Registry
	maxMobiles int
	onEmpty    func(deviceID string)
}

// New constructs a Room backed by registry for deviceID. maxMobiles caps
// concurrent mobile attachments (§3, default 3 from MAX_CONNECTIONS_PER_DEVICE).
func New(deviceID string, registry *transport.Registry, maxMobiles int, onEmpty func(string)) *Room {
	return &Room{
		DeviceID:   deviceID,
		mobiles:    make(map[string]*transport.Socket),
		registry:   registry,
		maxMobiles: maxMobiles,
		onEmpty:    onEmpty,
	}
}

// rebuildLocked repopulates the cache from the registry's live sockets
// whenever the cache looks cold — the hibernation-recovery path. Caller
// must hold r.mu.
func (r *Room) rebuildLocked() {
	if r.host != nil || len(r.mobiles) > 0 {
		return
	}
	for _, sock := range r.registry.Live(r.DeviceID) {
		a := sock.Attachment()
		switch a.Role {
		case transport.RoleHost:
			r.host = sock
		case transport.RoleMobile:
			r.mobiles[a.MobileID] = sock
		}
	}
}

// AdmitHost registers sock as the room's host attachment. If a host is
// already attached, it is closed with code 1000 and reason "Connection
// replaced" before sock is accepted — §4.C admission rule.
func (r *Room) AdmitHost(ctx context.Context, sock *transport.Socket) {
	r.mu.Lock()
	r.rebuildLocked()
	existing := r.host
	r.host = sock
	r.mu.Unlock()

	if existing != nil && existing != sock {
		closeWithCode(existing, 1000, "Connection replaced")
		r.registry.Remove(r.DeviceID, existing)
		logging.Info(ctx, "replaced existing host attachment", zap.String("device_id", r.DeviceID))
	}
	r.registry.Add(r.DeviceID, sock)
	metrics.HostConnected.WithLabelValues(r.DeviceID).Set(1)
}

// MobileCapReached reports whether admitting one more mobile would exceed
// maxMobiles, counted against the registry's live sockets (never the
// cache) so the check is correct immediately after a hibernation wake-up.
func (r *Room) MobileCapReached() bool {
	return r.registry.CountByRole(r.DeviceID, transport.RoleMobile) >= r.maxMobiles
}

// AdmitMobile registers sock as a mobile attachment keyed by mobileID.
func (r *Room) AdmitMobile(ctx context.Context, mobileID string, sock *transport.Socket) {
	r.mu.Lock()
	r.rebuildLocked()
	r.mobiles[mobileID] = sock
	r.mu.Unlock()

	r.registry.Add(r.DeviceID, sock)
	metrics.MobileAttachments.WithLabelValues(r.DeviceID).Set(float64(r.registry.CountByRole(r.DeviceID, transport.RoleMobile)))
	logging.Info(ctx, "mobile attached", zap.String("device_id", r.DeviceID), zap.String("mobile_id", mobileID))
}

// RemoveSocket detaches sock from the room's cache and registry. It is
// called from both the normal disconnect path and socket error handling.
func (r *Room) RemoveSocket(ctx context.Context, sock *transport.Socket) {
	a := sock.Attachment()

	r.mu.Lock()
	switch a.Role {
	case transport.RoleHost:
		if r.host == sock {
			r.host = nil
		}
	case transport.RoleMobile:
		if r.mobiles[a.MobileID] == sock {
			delete(r.mobiles, a.MobileID)
		}
	}
	r.mu.Unlock()

	r.registry.Remove(r.DeviceID, sock)

	switch a.Role {
	case transport.RoleHost:
		metrics.HostConnected.WithLabelValues(r.DeviceID).Set(0)
		r.handleHostGone(ctx)
	case transport.RoleMobile:
		metrics.MobileAttachments.WithLabelValues(r.DeviceID).Set(float64(r.registry.CountByRole(r.DeviceID, transport.RoleMobile)))
		r.handleMobileGone(ctx, a.MobileID)
	}

	if r.IsEmpty() && r.onEmpty != nil {
		r.onEmpty(r.DeviceID)
	}
}

// IsEmpty reports whether the room has neither a host nor any mobile
// attachment live, per the registry (ground truth).
func (r *Room) IsEmpty() bool {
	return r.registry.Count(r.DeviceID) == 0
}

// HasHost reports whether a host is currently attached.
func (r *Room) HasHost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
	return r.host != nil
}

func (r *Room) getHost() *transport.Socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
	return r.host
}

func (r *Room) getMobile(mobileID string) *transport.Socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
	return r.mobiles[mobileID]
}

func (r *Room) mobileIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
	ids := make([]string, 0, len(r.mobiles))
	for id := range r.mobiles {
		ids = append(ids, id)
	}
	return ids
}

// SetDeviceMeta records the host's self-reported device name and optional
// public key, supplied via a `register` message.
func (r *Room) SetDeviceMeta(deviceName, publicKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceName = deviceName
	r.publicKey = publicKey
}

// DeviceName returns the last device name registered by the host.
func (r *Room) DeviceName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deviceName
}

func closeWithCode(sock *transport.Socket, code int, reason string) {
	deadline := time.Now().Add(2 * time.Second)
	_ = sock.Conn.SetWriteDeadline(deadline)
	_ = sock.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	sock.Close()
}
