package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/database"
	"github.com/otahak/herald/internal/game"
	"github.com/otahak/herald/internal/importer"
	"github.com/otahak/herald/internal/utils"
	ws "github.com/otahak/herald/internal/websocket"
	"go.uber.org/zap"
)

// Router wires all HTTP and websocket routes.
type Router struct {
	engine        *gin.Engine
	gameHandler   *GameHandler
	importHandler *ImportHandler
	wsHandler     *ws.Handler
	log           *zap.Logger
}

// NewRouter builds the engine with all routes registered.
func NewRouter(games *game.Service, imports *importer.Service, wsHandler *ws.Handler, tokens *utils.TokenManager, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())

	router := &Router{
		engine:        engine,
		gameHandler:   NewGameHandler(games, tokens),
		importHandler: NewImportHandler(imports),
		wsHandler:     wsHandler,
		log:           log,
	}
	router.setupRoutes()
	return router
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	games := r.engine.Group("/api/games")
	{
		games.POST("", r.gameHandler.CreateGame)
		games.GET("/:code", r.gameHandler.GetGame)
		games.PATCH("/:code", r.gameHandler.UpdateGameState)
		games.POST("/:code/join", r.gameHandler.JoinGame)
		games.POST("/:code/start", r.gameHandler.StartGame)
		games.POST("/:code/round", r.gameHandler.UpdateRound)

		games.GET("/:code/events", r.gameHandler.ListEvents)
		games.GET("/:code/events/export", r.gameHandler.ExportEvents)

		games.POST("/:code/units", r.gameHandler.CreateUnit)
		games.PATCH("/:code/units/:unitID", r.gameHandler.UpdateUnitState)
		games.POST("/:code/units/:unitID/detach", r.gameHandler.DetachUnit)

		games.POST("/:code/players/:playerID/victory-points", r.gameHandler.UpdateVictoryPoints)
		games.DELETE("/:code/players/:playerID/units", r.gameHandler.ClearUnits)

		games.POST("/:code/objectives", r.gameHandler.CreateObjectives)
		games.PATCH("/:code/objectives/:objectiveID", r.gameHandler.UpdateObjective)

		games.POST("/:code/import-army", r.importHandler.ImportArmy)
	}

	r.engine.GET("/api/proxy/army-forge/:listID", r.importHandler.GetArmyForgeList)

	r.engine.GET("/ws/:code", r.wsHandler.HandleGameSync)

	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)
}

// healthCheck godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": database.IsConnected(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Engine exposes the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
