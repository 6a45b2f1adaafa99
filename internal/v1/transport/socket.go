// Package transport provides the hibernation-safe WebSocket plumbing
// shared by the gateway and the device room. A Socket carries an
// Attachment — role, mobile id, timestamps — directly on the connection
// object itself, so a Registry can rebuild a room's routing table by
// enumerating live sockets and reading their attachments, even if the
// room's in-memory state was discarded between messages.
package transport

import (
	"sync"
	"time"
)

// Role distinguishes the two kinds of socket a device room ever sees.
type Role string

const (
	RoleHost   Role = "host"
	RoleMobile Role = "mobile"
)

// Attachment is the per-socket metadata the spec requires to survive a
// room's in-memory state being discarded. It is the "ground truth"; any
// in-memory map the room keeps is merely a cache of it.
type Attachment struct {
	ConnectionID string
	Role         Role
	MobileID     string // empty for the host attachment
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Conn is the minimal surface a transport needs from a live WebSocket,
// matching the teacher's wsConnection interface so a fake can stand in for
// tests without dialing a real socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// Socket wraps a live connection together with its serialized attachment.
// Attachment access is mutex-guarded because LastActivity is updated from
// the read loop while a status snapshot may read it concurrently.
type Socket struct {
	Conn Conn

	mu         sync.RWMutex
	attachment Attachment

	send      chan []byte
	closeOnce sync.Once
}

// NewSocket wraps conn and immediately serializes attachment onto it, per
// §4.C "Attachment persistence": the gateway calls this right after
// accepting the socket, before handing it to the room.
func NewSocket(conn Conn, attachment Attachment) *Socket {
	return &Socket{
		Conn:       conn,
		attachment: attachment,
		send:       make(chan []byte, 64),
	}
}

// Attachment returns a copy of the socket's current attachment.
func (s *Socket) Attachment() Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attachment
}

// SetAttachment replaces the socket's attachment wholesale. The gateway
// binds mobile_id through the attachment it passes to NewSocket, so nothing
// in this module calls SetAttachment.
func (s *Socket) SetAttachment(a Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment = a
}

// Touch updates last_activity, matching §4.C's keep-alive note: the room
// updates this on every message but never uses it to terminate a socket.
func (s *Socket) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment.LastActivity = time.Now()
}

// Send enqueues a message for the write pump. It never blocks: a full
// buffer means a slow reader, and the spec forbids blocking producers on a
// slow mobile — so the oldest-first message is dropped instead.
func (s *Socket) Send(data []byte) {
	select {
	case s.send <- data:
	default:
		select {
		case <-s.send:
		default:
		}
		select {
		case s.send <- data:
		default:
		}
	}
}

// WritePump drains the send channel onto the wire until the channel is
// closed or a write fails. Call it in its own goroutine.
func (s *Socket) WritePump() {
	const writeWait = 10 * time.Second
	for data := range s.send {
		_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.Conn.WriteMessage(1, data); err != nil { // 1 == websocket.TextMessage
			return
		}
	}
}

// Close stops accepting further sends and closes the underlying connection.
// Idempotent: safe to call from both the read and write pump's deferred
// cleanup.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.send)
		_ = s.Conn.Close()
	})
}
