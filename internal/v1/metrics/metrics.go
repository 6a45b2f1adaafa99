// Package metrics declares Prometheus metrics for the relay service.
//
// Naming convention follows the teacher: namespace_subsystem_name.
//   - namespace: climanger_relay (application-level grouping)
//   - subsystem: gateway, room, pty (feature-level grouping)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveDeviceRooms tracks the current number of addressable device rooms.
	ActiveDeviceRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "climanger_relay",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of addressable device rooms",
	})

	// MobileAttachments tracks the number of mobile attachments per device.
	MobileAttachments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "climanger_relay",
		Subsystem: "room",
		Name:      "mobile_attachments",
		Help:      "Number of live mobile attachments per device room",
	}, []string{"device_id"})

	// HostConnected tracks whether a device room currently has a host attached.
	HostConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "climanger_relay",
		Subsystem: "room",
		Name:      "host_connected",
		Help:      "1 if the device room has a host attachment, 0 otherwise",
	}, []string{"device_id"})

	// MessagesRouted counts routed wire messages by type and outcome.
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climanger_relay",
		Subsystem: "room",
		Name:      "messages_routed_total",
		Help:      "Total wire messages routed, by type and outcome",
	}, []string{"type", "outcome"})

	// PinsIssued counts successful pairing-code creations.
	PinsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "climanger_relay",
		Subsystem: "gateway",
		Name:      "pins_issued_total",
		Help:      "Total pairing codes issued",
	})

	// TokensMinted counts successful /auth redemptions.
	TokensMinted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "climanger_relay",
		Subsystem: "gateway",
		Name:      "tokens_minted_total",
		Help:      "Total bearer tokens minted",
	})

	// AuthFailures counts failed /auth attempts.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "climanger_relay",
		Subsystem: "gateway",
		Name:      "auth_failures_total",
		Help:      "Total failed pairing-code redemptions",
	})

	// ActivePTYSessions tracks live PTY-backed sessions on a host.
	ActivePTYSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "climanger_relay",
		Subsystem: "pty",
		Name:      "sessions_active",
		Help:      "Current number of live PTY-backed remote sessions",
	})

	// PTYBytesRelayed counts bytes moved through the PTY manager, by direction.
	PTYBytesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climanger_relay",
		Subsystem: "pty",
		Name:      "bytes_relayed_total",
		Help:      "Total bytes relayed through PTY sessions, by direction",
	}, []string{"direction"})
)
