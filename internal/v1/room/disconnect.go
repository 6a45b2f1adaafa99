package room

import (
	"context"
	"time"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/transport"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleHostGone implements §4.C's host-disconnect semantics: every
// remaining mobile gets an `error` event, then a graceful close. The room
// itself stays addressable — a later host registration restarts it.
func (r *Room) handleHostGone(ctx context.Context) {
	ids := r.mobileIDs()
	sockets := make([]*transport.Socket, 0, len(ids))
	for _, id := range ids {
		if sock := r.getMobile(id); sock != nil {
			sockets = append(sockets, sock)
			r.sendTo(sock, Envelope{
				Type:    TypeError,
				Payload: map[string]any{"message": "Desktop disconnected"},
			})
		}
	}
	// Close gracefully after the error notice has had a chance to flush,
	// preserving per-socket ordering (error before close).
	for _, sock := range sockets {
		go closeGraceful(sock)
	}
	logging.Info(ctx, "host disconnected, notified mobiles", zap.String("device_id", r.DeviceID))
}

func closeGraceful(sock *transport.Socket) {
	time.Sleep(50 * time.Millisecond)
	closeWithCode(sock, websocket.CloseNormalClosure, "Desktop disconnected")
}

// handleMobileGone implements §4.C's mobile-disconnect semantics: the host
// is notified with a `mobile_disconnect` event carrying the mobile_id, so
// it can tear down any PTY sessions belonging to that mobile.
func (r *Room) handleMobileGone(ctx context.Context, mobileID string) {
	host := r.getHost()
	if host == nil {
		return
	}
	r.sendTo(host, Envelope{
		Type:    TypeMobileDisconnect,
		Payload: map[string]any{"mobile_id": mobileID},
	})
	logging.Info(ctx, "mobile disconnected, notified host", zap.String("device_id", r.DeviceID), zap.String("mobile_id", mobileID))
}

// CloseRoom forcibly disconnects every attachment with the given reason,
// used on server shutdown.
func (r *Room) CloseRoom(reason string) {
	if host := r.getHost(); host != nil {
		closeWithCode(host, websocket.CloseNormalClosure, reason)
		r.registry.Remove(r.DeviceID, host)
	}
	for _, id := range r.mobileIDs() {
		if sock := r.getMobile(id); sock != nil {
			closeWithCode(sock, websocket.CloseNormalClosure, reason)
			r.registry.Remove(r.DeviceID, sock)
		}
	}
}
