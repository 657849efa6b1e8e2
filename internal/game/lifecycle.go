package game

import (
	"time"

	"github.com/otahak/herald/internal/models"
)

// ExpirationPolicy holds the idle windows after which sessions expire.
type ExpirationPolicy struct {
	// MultiplayerIdle applies once every player has disconnected.
	MultiplayerIdle time.Duration
	// SoloIdle applies to solo sessions regardless of connections.
	SoloIdle time.Duration
}

// DefaultExpirationPolicy mirrors the product rules: an hour for abandoned
// multiplayer sessions, thirty days for solo ones.
func DefaultExpirationPolicy() ExpirationPolicy {
	return ExpirationPolicy{
		MultiplayerIdle: time.Hour,
		SoloIdle:        30 * 24 * time.Hour,
	}
}

// CheckExpiration evaluates the lazy expiration rules against now and flips
// the in-memory status to expired when they hit. The caller persists the
// change. Returns true when the game is (or just became) expired.
func (p ExpirationPolicy) CheckExpiration(g *models.Game, now time.Time) bool {
	if g.Status == models.StatusExpired {
		return true
	}

	// Nothing recorded yet means the session cannot have gone idle.
	if g.LastActivityAt == nil {
		return false
	}
	idle := now.Sub(*g.LastActivityAt)

	if g.IsSolo {
		if idle > p.SoloIdle {
			g.Status = models.StatusExpired
			return true
		}
		return false
	}

	allDisconnected := true
	for i := range g.Players {
		if g.Players[i].IsConnected {
			allDisconnected = false
			break
		}
	}
	if allDisconnected && idle > p.MultiplayerIdle {
		g.Status = models.StatusExpired
		return true
	}

	return false
}
