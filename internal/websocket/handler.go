package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/game"
	"github.com/otahak/herald/internal/logger"
	"github.com/otahak/herald/internal/utils"
	"go.uber.org/zap"
)

// Handler upgrades game sync connections and processes their messages.
type Handler struct {
	games    *game.Service
	rooms    *Manager
	tokens   *utils.TokenManager
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler wires the sync endpoint.
func NewHandler(games *game.Service, rooms *Manager, tokens *utils.TokenManager, cfg *config.WebSocketConfig) *Handler {
	readBuffer := cfg.ReadBufferSize
	if readBuffer <= 0 {
		readBuffer = 1024
	}
	writeBuffer := cfg.WriteBufferSize
	if writeBuffer <= 0 {
		writeBuffer = 1024
	}
	return &Handler{
		games:  games,
		rooms:  rooms,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    readBuffer,
			WriteBufferSize:   writeBuffer,
			EnableCompression: cfg.EnableCompression,
			// Players connect from arbitrary devices on the local network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.GetModuleLogger("websocket"),
	}
}

// HandleGameSync is the ws endpoint for one game session. The full state
// snapshot goes out before anything else so late joiners never render from
// deltas alone.
func (h *Handler) HandleGameSync(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))

	g, err := h.games.GetGame(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("code", code), zap.Error(err))
		return
	}

	room := h.rooms.Room(code)
	client := newClient(h, room, conn)
	room.add(client)
	h.log.Info("client connected",
		zap.String("code", code),
		zap.String("client_id", client.ID),
		zap.Int("room_size", room.Size()),
	)

	go client.WritePump()
	h.sendState(client, g)
	client.ReadPump()
}

func (h *Handler) handleMessage(c *Client, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ErrMessageFormat))
		return
	}
	logger.LogWebSocketMessage("receive", msg.Type, len(raw))

	switch msg.Type {
	case MessageTypeJoin:
		h.handleJoin(c, &msg)

	case MessageTypeRequestState:
		g, err := h.games.GetGame(context.Background(), c.GameCode)
		if err != nil {
			h.sendError(c, err)
			return
		}
		h.sendState(c, g)

	case MessageTypePing:
		h.send(c, map[string]any{"type": MessageTypePong})

	case MessageTypeStateUpdate:
		// Optimistic delta from one viewer; echo to the rest.
		c.room.Broadcast(raw, c)

	default:
		h.sendError(c, errors.Newf(errors.ErrMessageFormat, "unknown message type %q", msg.Type))
	}
}

// handleJoin upgrades an anonymous connection to an identified seat.
func (h *Handler) handleJoin(c *Client, msg *inboundMessage) {
	if msg.PlayerID == "" {
		h.sendError(c, errors.New(errors.ErrInvalidParam, "join requires a player_id"))
		return
	}

	ctx := context.Background()
	g, err := h.games.GetGame(ctx, c.GameCode)
	if err != nil {
		h.sendError(c, err)
		return
	}
	player := g.Player(msg.PlayerID)
	if player == nil {
		h.sendError(c, errors.Newf(errors.ErrPlayerNotFound, "player %s", msg.PlayerID))
		return
	}

	if msg.Token != "" && h.tokens != nil {
		claims, err := h.tokens.ParsePlayerToken(msg.Token)
		if err != nil {
			h.sendError(c, err)
			return
		}
		if claims.PlayerID != msg.PlayerID || claims.GameCode != c.GameCode {
			h.sendError(c, errors.New(errors.ErrTokenInvalid, "token does not match this seat"))
			return
		}
	}

	c.PlayerID = player.ID
	c.room.evictPlayer(player.ID, c)
	if err := h.games.SetPlayerConnected(ctx, c.GameCode, player.ID, true); err != nil {
		h.sendError(c, err)
		return
	}
	h.log.Info("player identified",
		zap.String("code", c.GameCode),
		zap.String("player_id", player.ID),
	)

	c.room.Broadcast(mustEncode(map[string]any{
		"type":      MessageTypePlayerJoined,
		"player_id": player.ID,
		"name":      player.Name,
	}), c)

	if fresh, err := h.games.GetGame(ctx, c.GameCode); err == nil {
		g = fresh
	}
	h.sendState(c, g)
}

// disconnect runs the guaranteed cleanup: registry removal first, then the
// live-connection flag, then the departure notice. Each step proceeds even
// if an earlier one failed.
func (h *Handler) disconnect(c *Client) {
	if c.room.remove(c) {
		h.rooms.drop(c.room)
	}

	// an evicted connection must not undo the state of the connection that
	// replaced it on the same seat
	if c.PlayerID != "" && !c.room.holdsPlayer(c.PlayerID, c) {
		if err := h.games.SetPlayerConnected(context.Background(), c.GameCode, c.PlayerID, false); err != nil {
			h.log.Warn("failed to clear connection flag",
				zap.String("code", c.GameCode),
				zap.String("player_id", c.PlayerID),
				zap.Error(err),
			)
		}
		c.room.Broadcast(mustEncode(map[string]any{
			"type":      MessageTypePlayerLeft,
			"player_id": c.PlayerID,
		}), nil)
	}

	h.log.Info("client disconnected",
		zap.String("code", c.GameCode),
		zap.String("client_id", c.ID),
	)
}

func (h *Handler) send(c *Client, message any) {
	payload, err := encodeMessage(message)
	if err != nil {
		h.log.Error("encode failed", zap.Error(err))
		return
	}
	c.Enqueue(payload)
}

func (h *Handler) sendState(c *Client, g any) {
	h.send(c, stateMessage(g))
}

func (h *Handler) sendError(c *Client, err error) {
	h.send(c, errorMessage(err))
}

func mustEncode(message map[string]any) []byte {
	payload, _ := json.Marshal(message)
	return payload
}
