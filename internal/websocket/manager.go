package websocket

import (
	"strings"
	"sync"

	"github.com/otahak/herald/internal/logger"
	"go.uber.org/zap"
)

// Manager tracks one Room per game session. Rooms are created on the first
// connection and dropped once the last one leaves. It is the game engine's
// broadcast fanout.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	log *zap.Logger
}

// NewManager creates an empty room registry.
func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		log:   logger.GetModuleLogger("websocket"),
	}
}

// Room returns the room for a code, creating it on first use.
func (m *Manager) Room(code string) *Room {
	code = strings.ToUpper(code)

	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[code]
	if !ok {
		room = newRoom(code, m.log)
		m.rooms[code] = room
		m.log.Info("room opened", zap.String("code", code))
	}
	return room
}

// drop removes a room once it has emptied. Re-checked under the lock since a
// new connection may have raced in.
func (m *Manager) drop(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.Size() == 0 && m.rooms[room.code] == room {
		delete(m.rooms, room.code)
		m.log.Info("room closed", zap.String("code", room.code))
	}
}

// RoomCount returns the number of open rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// BroadcastToGame implements the game engine's Broadcaster. Fire and forget:
// an unknown room or an undeliverable payload never fails the mutation that
// triggered it.
func (m *Manager) BroadcastToGame(code string, message any) {
	m.mu.RLock()
	room := m.rooms[strings.ToUpper(code)]
	m.mu.RUnlock()
	if room == nil {
		return
	}

	payload, err := encodeMessage(message)
	if err != nil {
		m.log.Error("broadcast encode failed", zap.String("code", code), zap.Error(err))
		return
	}
	room.Broadcast(payload, nil)
}
