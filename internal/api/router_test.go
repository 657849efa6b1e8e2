package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/game"
	"github.com/otahak/herald/internal/importer"
	"github.com/otahak/herald/internal/repository"
	"github.com/otahak/herald/internal/utils"
	ws "github.com/otahak/herald/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *Router {
	gin.SetMode(gin.TestMode)

	db := repository.SetupTestDB(t)
	repos := repository.NewManager(db)
	rooms := ws.NewManager()
	games := game.NewService(repos, rooms, &config.GameConfig{
		WoundGraceWindow: 30 * time.Second,
		LockWaitTimeout:  time.Second,
	})
	tokens := utils.NewTokenManager(&config.JWTConfig{Secret: "test-secret", ExpireHours: 1})
	imports := importer.NewService(importer.NewClient(&config.ImportConfig{
		BaseURL:        "http://127.0.0.1:1",
		RequestTimeout: time.Second,
	}), games)
	wsHandler := ws.NewHandler(games, rooms, tokens, &config.WebSocketConfig{})

	return NewRouter(games, imports, wsHandler, tokens, zap.NewNop())
}

func doRequest(t *testing.T, router *Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.Engine().ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) GameEnvelope {
	t.Helper()
	var envelope GameEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Game)
	return envelope
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCreateJoinFlow(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/games", `{"player_name":"Carol","name":"Test Game"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decodeEnvelope(t, w)
	assert.Len(t, created.Game.Code, 6)
	assert.NotEmpty(t, created.YourPlayerID)
	assert.NotEmpty(t, created.Token)

	code := created.Game.Code

	w = doRequest(t, router, http.MethodPost, "/api/games/"+code+"/join", `{"player_name":"Dave"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	joined := decodeEnvelope(t, w)
	assert.Len(t, joined.Game.Players, 2)
	assert.NotEmpty(t, joined.YourPlayerID)

	w = doRequest(t, router, http.MethodPost, "/api/games/"+code+"/join", `{"player_name":"Eve"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/games/"+code, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateGameValidation(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/games", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGameNotFound(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/games/ZZZZZZ", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVictoryPointEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/games", `{"player_name":"Carol"}`)
	require.Equal(t, http.StatusOK, w.Code)
	created := decodeEnvelope(t, w)

	path := fmt.Sprintf("/api/games/%s/players/%s/victory-points", created.Game.Code, created.YourPlayerID)
	w = doRequest(t, router, http.MethodPost, path, `{"delta":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decodeEnvelope(t, w)
	assert.Equal(t, 2, updated.Game.Player(created.YourPlayerID).VictoryPoints)
}

func TestEventsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/games", `{"player_name":"Carol"}`)
	require.Equal(t, http.StatusOK, w.Code)
	created := decodeEnvelope(t, w)

	w = doRequest(t, router, http.MethodGet, "/api/games/"+created.Game.Code+"/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "game_started")

	w = doRequest(t, router, http.MethodGet, "/api/games/"+created.Game.Code+"/events/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}
