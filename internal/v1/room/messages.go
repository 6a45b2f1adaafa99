package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/metrics"
	"github.com/climanger/relay/internal/v1/transport"
	"go.uber.org/zap"
)

// The wire vocabulary (§6). A closed set — unknown types are logged and
// dropped rather than forwarded blind.
const (
	TypeRegister         = "register"
	TypeRegistered       = "registered"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeWorkspaceList    = "workspace_list"
	TypeWorkspaceData    = "workspace_data"
	TypeSessionCreate    = "session_create"
	TypeSessionCreated   = "session_created"
	TypeSessionClose     = "session_close"
	TypeTerminalInput    = "terminal_input"
	TypeTerminalOutput   = "terminal_output"
	TypeTerminalResize   = "terminal_resize"
	TypeMobileConnected  = "mobile_connected"
	TypeMobileDisconnect = "mobile_disconnect"
	TypeError            = "error"
)

// Envelope is the inbound/outbound shape of every control message: a
// discriminated union keyed by Type, with an arbitrary payload object.
// Kept as a map rather than per-type structs because the room's job is to
// add/strip a couple of routing keys (request_from, request_to, from, to)
// without otherwise interpreting the payload — per the spec's "open
// question" notes, payload.data is opaque and must round-trip verbatim.
type Envelope struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// Router is the room's single entry point for inbound messages, wired as
// the transport layer's on_message callback. It must cope with the room's
// cache being empty on entry (hibernation recovery) — every lookup it
// performs already does so via getHost/getMobile's rebuildLocked.
func (r *Room) Router(ctx context.Context, sock *transport.Socket, raw []byte) {
	sock.Touch()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logging.Warn(ctx, "dropping malformed message", zap.String("device_id", r.DeviceID), zap.Error(err))
		return
	}

	senderRole := sock.Attachment().Role
	senderMobileID := sock.Attachment().MobileID

	switch env.Type {
	case TypeRegister:
		if senderRole != transport.RoleHost {
			r.dropWrongRole(ctx, env.Type, senderRole)
			return
		}
		r.handleRegister(ctx, sock, env)

	case TypePing:
		r.sendTo(sock, Envelope{Type: TypePong, Payload: env.Payload})

	case TypeWorkspaceList, TypeSessionCreate, TypeTerminalResize:
		if senderRole != transport.RoleMobile {
			r.dropWrongRole(ctx, env.Type, senderRole)
			return
		}
		r.forwardToHost(ctx, env, senderMobileID, "request_from")

	// session_close is the one bidirectional type: a mobile sends it to ask
	// the host to tear a session down (§4.C), and the host sends it back to
	// announce the session already ended on its own (§4.D process exit) —
	// the latter has no separate wire type, so it rides the same one,
	// routed by the "to" field like terminal_output instead of
	// "request_from"/"request_to".
	case TypeSessionClose:
		switch senderRole {
		case transport.RoleMobile:
			r.forwardToHost(ctx, env, senderMobileID, "request_from")
		case transport.RoleHost:
			r.forwardToMobile(ctx, env, "to")
		default:
			r.dropWrongRole(ctx, env.Type, senderRole)
		}

	case TypeTerminalInput:
		if senderRole != transport.RoleMobile {
			r.dropWrongRole(ctx, env.Type, senderRole)
			return
		}
		r.forwardToHost(ctx, env, senderMobileID, "from")

	case TypeWorkspaceData, TypeSessionCreated:
		if senderRole != transport.RoleHost {
			r.dropWrongRole(ctx, env.Type, senderRole)
			return
		}
		r.forwardToMobile(ctx, env, "request_to")

	case TypeTerminalOutput:
		if senderRole != transport.RoleHost {
			r.dropWrongRole(ctx, env.Type, senderRole)
			return
		}
		r.forwardToMobile(ctx, env, "to")

	case TypeMobileDisconnect:
		if senderRole != transport.RoleMobile {
			r.dropWrongRole(ctx, env.Type, senderRole)
			return
		}
		r.RemoveSocket(ctx, sock)

	default:
		logging.Warn(ctx, "dropping unknown message type", zap.String("device_id", r.DeviceID), zap.String("type", env.Type))
	}
}

func (r *Room) dropWrongRole(ctx context.Context, msgType string, role transport.Role) {
	logging.Warn(ctx, "dropping message from wrong role", zap.String("device_id", r.DeviceID), zap.String("type", msgType), zap.String("role", string(role)))
}

func (r *Room) handleRegister(ctx context.Context, sock *transport.Socket, env Envelope) {
	deviceName, _ := env.Payload["device_name"].(string)
	publicKey, _ := env.Payload["public_key"].(string)
	r.SetDeviceMeta(deviceName, publicKey)
	logging.Info(ctx, "host registered",
		zap.String("device_id", r.DeviceID),
		zap.String("device_name", logging.RedactString(deviceName)),
		zap.String("public_key", logging.RedactString(publicKey)))
	r.sendTo(sock, Envelope{Type: TypeRegistered, Payload: map[string]any{"success": true}})
}

// forwardToHost routes a mobile-originated message to the host, adding
// idField = the sender's mobile_id. RoutingMiss (no host attached) is
// silently dropped per §7 — the sender receives no notification.
func (r *Room) forwardToHost(ctx context.Context, env Envelope, mobileID, idField string) {
	host := r.getHost()
	if host == nil {
		logging.Warn(ctx, "routing miss: no host attached", zap.String("device_id", r.DeviceID), zap.String("type", env.Type))
		metrics.MessagesRouted.WithLabelValues(env.Type, "routing_miss").Inc()
		return
	}
	payload := clonePayload(env.Payload)
	payload[idField] = mobileID
	r.sendTo(host, Envelope{Type: env.Type, Payload: payload})
	metrics.MessagesRouted.WithLabelValues(env.Type, "routed").Inc()
}

// forwardToMobile routes a host-originated message to the mobile named by
// targetField in the payload, stripping that field before forwarding.
// Silently dropped if the target mobile isn't attached.
func (r *Room) forwardToMobile(ctx context.Context, env Envelope, targetField string) {
	payload := clonePayload(env.Payload)
	target, _ := payload[targetField].(string)
	delete(payload, targetField)

	mobile := r.getMobile(target)
	if mobile == nil {
		logging.Warn(ctx, "routing miss: target mobile not attached", zap.String("device_id", r.DeviceID), zap.String("type", env.Type), zap.String("mobile_id", target))
		metrics.MessagesRouted.WithLabelValues(env.Type, "routing_miss").Inc()
		return
	}
	r.sendTo(mobile, Envelope{Type: env.Type, Payload: payload})
	metrics.MessagesRouted.WithLabelValues(env.Type, "routed").Inc()
}

// sendTo serializes env with a server-assigned timestamp and enqueues it
// on sock's write pump.
func (r *Room) sendTo(sock *transport.Socket, env Envelope) {
	env.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outbound message", zap.String("device_id", r.DeviceID), zap.Error(err))
		return
	}
	sock.Send(data)
}

func clonePayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}
