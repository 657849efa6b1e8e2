package websocket

import (
	"encoding/json"

	"github.com/otahak/herald/internal/errors"
)

// Message types on the game sync channel.
const (
	// Inbound
	MessageTypeJoin         = "join"
	MessageTypeRequestState = "request_state"
	MessageTypePing         = "ping"

	// Outbound
	MessageTypeState        = "state"
	MessageTypePlayerJoined = "player_joined"
	MessageTypePlayerLeft   = "player_left"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"

	// Both directions. Inbound copies are echoed to the other viewers.
	MessageTypeStateUpdate = "state_update"
)

// inboundMessage is the shape of every client-to-server frame.
type inboundMessage struct {
	Type     string          `json:"type"`
	PlayerID string          `json:"player_id,omitempty"`
	Token    string          `json:"token,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func encodeMessage(message any) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMessageFormat)
	}
	return payload, nil
}

func stateMessage(data any) map[string]any {
	return map[string]any{
		"type": MessageTypeState,
		"data": data,
	}
}

func errorMessage(err error) map[string]any {
	return map[string]any{
		"type": MessageTypeError,
		"error": map[string]any{
			"code":    errors.GetCode(err),
			"message": err.Error(),
		},
	}
}
