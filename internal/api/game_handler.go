package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/game"
	"github.com/otahak/herald/internal/logger"
	"github.com/otahak/herald/internal/repository"
	"github.com/otahak/herald/internal/utils"
	"go.uber.org/zap"
)

// GameHandler serves the session REST surface.
type GameHandler struct {
	games  *game.Service
	tokens *utils.TokenManager
	log    *zap.Logger
}

// NewGameHandler creates the handler.
func NewGameHandler(games *game.Service, tokens *utils.TokenManager) *GameHandler {
	return &GameHandler{
		games:  games,
		tokens: tokens,
		log:    logger.GetModuleLogger("game"),
	}
}

// issueToken signs a seat token; failures degrade to an empty token since
// the token is optional on the ws join.
func (h *GameHandler) issueToken(code, playerID string) string {
	if h.tokens == nil {
		return ""
	}
	token, err := h.tokens.IssuePlayerToken(code, playerID)
	if err != nil {
		h.log.Warn("token issue failed", zap.String("code", code), zap.Error(err))
		return ""
	}
	return token
}

// CreateGame godoc
// @Summary Create a game session
// @Tags games
// @Accept json
// @Produce json
// @Param request body game.CreateGameRequest true "session settings"
// @Success 200 {object} GameEnvelope
// @Router /api/games [post]
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req game.CreateGameRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.games.CreateGame(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	host := ""
	for i := range created.Players {
		if created.Players[i].IsHost {
			host = created.Players[i].ID
			break
		}
	}
	c.JSON(http.StatusOK, GameEnvelope{
		Game:         created,
		YourPlayerID: host,
		Token:        h.issueToken(created.Code, host),
	})
}

// GetGame godoc
// @Summary Fetch a session by join code
// @Tags games
// @Produce json
// @Param code path string true "join code"
// @Success 200 {object} GameEnvelope
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/games/{code} [get]
func (h *GameHandler) GetGame(c *gin.Context) {
	loaded, err := h.games.GetGame(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, loaded)
}

// JoinGame godoc
// @Summary Claim the second seat of a lobby
// @Tags games
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body game.JoinGameRequest true "player info"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/join [post]
func (h *GameHandler) JoinGame(c *gin.Context) {
	var req game.JoinGameRequest
	if !bindJSON(c, &req) {
		return
	}

	joined, playerID, err := h.games.JoinGame(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GameEnvelope{
		Game:         joined,
		YourPlayerID: playerID,
		Token:        h.issueToken(joined.Code, playerID),
	})
}

// StartGame godoc
// @Summary Start a lobby
// @Tags games
// @Produce json
// @Param code path string true "join code"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/start [post]
func (h *GameHandler) StartGame(c *gin.Context) {
	started, err := h.games.StartGame(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, started)
}

// UpdateGameState godoc
// @Summary Bulk round/turn/status update
// @Tags games
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body game.UpdateGameStateRequest true "fields to change"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code} [patch]
func (h *GameHandler) UpdateGameState(c *gin.Context) {
	var req game.UpdateGameStateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.UpdateGameState(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// UpdateVictoryPoints godoc
// @Summary Apply a victory point delta to a player
// @Tags games
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param playerID path string true "player id"
// @Param request body game.DeltaRequest true "signed delta"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/players/{playerID}/victory-points [post]
func (h *GameHandler) UpdateVictoryPoints(c *gin.Context) {
	var req game.DeltaRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.UpdateVictoryPoints(c.Request.Context(), c.Param("code"), c.Param("playerID"), req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// UpdateRound godoc
// @Summary Apply a round counter delta
// @Tags games
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body game.DeltaRequest true "signed delta"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/round [post]
func (h *GameHandler) UpdateRound(c *gin.Context) {
	var req game.DeltaRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.UpdateRound(c.Request.Context(), c.Param("code"), req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// ListEvents godoc
// @Summary List the action log, newest first
// @Tags events
// @Produce json
// @Param code path string true "join code"
// @Param page query int false "page"
// @Param page_size query int false "page size"
// @Success 200 {object} map[string]any
// @Router /api/games/{code}/events [get]
func (h *GameHandler) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	p := repository.NewPagination(page, pageSize)

	events, err := h.games.ListEvents(c.Request.Context(), c.Param("code"), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events":     events,
		"pagination": p,
	})
}

// ExportEvents godoc
// @Summary Export the full action log as markdown
// @Tags events
// @Produce plain
// @Param code path string true "join code"
// @Success 200 {string} string
// @Router /api/games/{code}/events/export [get]
func (h *GameHandler) ExportEvents(c *gin.Context) {
	md, filename, err := h.games.ExportEvents(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

// CreateUnit godoc
// @Summary Add a unit manually
// @Tags units
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body game.CreateUnitRequest true "unit profile"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/units [post]
func (h *GameHandler) CreateUnit(c *gin.Context) {
	var req game.CreateUnitRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.CreateUnit(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// UpdateUnitState godoc
// @Summary Apply a partial unit-state update
// @Tags units
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param unitID path string true "unit id"
// @Param request body game.UpdateUnitStateRequest true "fields to change"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/units/{unitID} [patch]
func (h *GameHandler) UpdateUnitState(c *gin.Context) {
	var req game.UpdateUnitStateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.UpdateUnitState(c.Request.Context(), c.Param("code"), c.Param("unitID"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// DetachUnit godoc
// @Summary Detach a joined unit from its parent
// @Tags units
// @Produce json
// @Param code path string true "join code"
// @Param unitID path string true "unit id"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/units/{unitID}/detach [post]
func (h *GameHandler) DetachUnit(c *gin.Context) {
	updated, err := h.games.DetachUnit(c.Request.Context(), c.Param("code"), c.Param("unitID"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// ClearUnits godoc
// @Summary Remove all of a player's units (lobby only)
// @Tags units
// @Produce json
// @Param code path string true "join code"
// @Param playerID path string true "player id"
// @Success 200 {object} map[string]any
// @Router /api/games/{code}/players/{playerID}/units [delete]
func (h *GameHandler) ClearUnits(c *gin.Context) {
	updated, result, err := h.games.ClearUnits(c.Request.Context(), c.Param("code"), c.Param("playerID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"game":   updated,
		"result": result,
	})
}

// CreateObjectives godoc
// @Summary Seed the objective markers
// @Tags objectives
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body game.CreateObjectivesRequest true "marker count"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/objectives [post]
func (h *GameHandler) CreateObjectives(c *gin.Context) {
	var req game.CreateObjectivesRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.CreateObjectives(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}

// UpdateObjective godoc
// @Summary Change a marker's control state
// @Tags objectives
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param objectiveID path string true "objective id"
// @Param request body game.UpdateObjectiveRequest true "new state"
// @Success 200 {object} GameEnvelope
// @Router /api/games/{code}/objectives/{objectiveID} [patch]
func (h *GameHandler) UpdateObjective(c *gin.Context) {
	var req game.UpdateObjectiveRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.games.UpdateObjective(c.Request.Context(), c.Param("code"), c.Param("objectiveID"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGame(c, updated)
}
