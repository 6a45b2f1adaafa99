package gateway

import (
	"sync"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/metrics"
	"github.com/climanger/relay/internal/v1/room"
	"github.com/climanger/relay/internal/v1/transport"
	"go.uber.org/zap"
)

// RoomManager is the gateway's registry of per-device rooms, grounded on
// the teacher's Hub: a mutex-guarded map that creates rooms lazily and
// removes them once empty. Unlike the teacher's grace-period cleanup, a
// device room here is cheap to recreate (the registry, not the room
// struct, is the durable state), so removal is immediate.
type RoomManager struct {
	mu         sync.Mutex
	rooms      map[string]*room.Room
	registry   *transport.Registry
	maxMobiles int
}

// NewRoomManager constructs a RoomManager backed by registry.
func NewRoomManager(registry *transport.Registry, maxMobiles int) *RoomManager {
	return &RoomManager{
		rooms:      make(map[string]*room.Room),
		registry:   registry,
		maxMobiles: maxMobiles,
	}
}

// GetOrCreate returns the room for deviceID, creating it if absent.
func (m *RoomManager) GetOrCreate(deviceID string) *room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[deviceID]; ok {
		return r
	}

	r := room.New(deviceID, m.registry, m.maxMobiles, m.onEmpty)
	m.rooms[deviceID] = r
	metrics.ActiveDeviceRooms.Inc()
	logging.Info(nil, "device room created", zap.String("device_id", deviceID))
	return r
}

// Get returns the room for deviceID without creating one, or nil.
func (m *RoomManager) Get(deviceID string) *room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[deviceID]
}

func (m *RoomManager) onEmpty(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[deviceID]; ok {
		delete(m.rooms, deviceID)
		metrics.ActiveDeviceRooms.Dec()
		logging.Info(nil, "device room removed (empty)", zap.String("device_id", deviceID))
	}
}

// CloseAll forcibly disconnects every room, used on server shutdown.
func (m *RoomManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		r.CloseRoom("server shutting down")
	}
}
