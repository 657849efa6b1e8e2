package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/models"
)

// GameEnvelope wraps a game payload together with caller-specific extras
// returned from create/join.
type GameEnvelope struct {
	Game         *models.Game `json:"game"`
	YourPlayerID string       `json:"your_player_id,omitempty"`
	Token        string       `json:"token,omitempty"`
}

func respondGame(c *gin.Context, game *models.Game) {
	c.JSON(http.StatusOK, GameEnvelope{Game: game})
}

func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	c.JSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
}

func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return false
	}
	return true
}
