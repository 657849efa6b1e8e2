package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Room is the set of live connections viewing one game session. Connections
// start anonymous and may later claim a seat via the join message.
type Room struct {
	code string

	mu      sync.RWMutex
	clients map[*Client]struct{}

	log *zap.Logger
}

func newRoom(code string, log *zap.Logger) *Room {
	return &Room{
		code:    code,
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Code returns the join code this room serves.
func (r *Room) Code() string {
	return r.code
}

func (r *Room) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// remove drops the client and reports whether the room is now empty.
func (r *Room) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	return len(r.clients) == 0
}

// evictPlayer closes any other connection already identified as playerID.
// A rejoin from a new tab or device takes the seat over.
func (r *Room) evictPlayer(playerID string, keep *Client) {
	r.mu.RLock()
	var stale []*Client
	for c := range r.clients {
		if c != keep && c.PlayerID == playerID {
			stale = append(stale, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range stale {
		r.log.Info("replacing stale connection for player",
			zap.String("code", r.code),
			zap.String("player_id", playerID),
		)
		c.Close()
	}
}

// holdsPlayer reports whether any live connection besides except is
// identified as playerID.
func (r *Room) holdsPlayer(playerID string, except *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		if c != except && c.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Size returns the live connection count.
func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues the payload on every connection except exclude. A full or
// dead connection only loses its own copy; delivery to the rest proceeds.
func (r *Room) Broadcast(payload []byte, exclude *Client) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.Enqueue(payload) {
			r.log.Warn("dropping message for slow client",
				zap.String("code", r.code),
				zap.String("client_id", c.ID),
			)
		}
	}
}
