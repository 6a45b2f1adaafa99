package room

import (
	"time"

	"github.com/climanger/relay/internal/v1/transport"
)

// MobileAttachmentStatus is one entry in a Status snapshot's mobile list.
type MobileAttachmentStatus struct {
	MobileID     string    `json:"mobile_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Status is the snapshot returned by GET /device/:device_id/status (§4.C).
// It is built by enumerating the registry's live sockets and their
// attachments directly, never the room's cache, so it is accurate even for
// a device whose room has not been touched since a hibernation wake-up.
type Status struct {
	DeviceID          string                   `json:"device_id"`
	DeviceName        string                   `json:"device_name,omitempty"`
	HostConnected     bool                     `json:"host_connected"`
	MobileAttachments []MobileAttachmentStatus `json:"mobile_attachments"`
	TotalSockets      int                      `json:"total_sockets"`
}

// Snapshot returns the room's current status by scanning live sockets.
func (r *Room) Snapshot() Status {
	live := r.registry.Live(r.DeviceID)

	status := Status{
		DeviceID:          r.DeviceID,
		DeviceName:        r.DeviceName(),
		MobileAttachments: make([]MobileAttachmentStatus, 0, len(live)),
		TotalSockets:      len(live),
	}

	for _, sock := range live {
		a := sock.Attachment()
		switch a.Role {
		case transport.RoleHost:
			status.HostConnected = true
		case transport.RoleMobile:
			status.MobileAttachments = append(status.MobileAttachments, MobileAttachmentStatus{
				MobileID:     a.MobileID,
				ConnectedAt:  a.ConnectedAt,
				LastActivity: a.LastActivity,
			})
		}
	}

	return status
}
