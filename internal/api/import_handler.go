package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/importer"
)

// ImportHandler serves the Army Forge endpoints.
type ImportHandler struct {
	imports *importer.Service
}

// NewImportHandler creates the handler.
func NewImportHandler(imports *importer.Service) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// GetArmyForgeList godoc
// @Summary Proxy-fetch a shared Army Forge list
// @Tags import
// @Produce json
// @Param listID path string true "list id"
// @Success 200 {object} importer.ArmyForgeList
// @Failure 502 {object} errors.ErrorResponse
// @Router /api/proxy/army-forge/{listID} [get]
func (h *ImportHandler) GetArmyForgeList(c *gin.Context) {
	list, err := h.imports.FetchList(c.Request.Context(), c.Param("listID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ImportArmy godoc
// @Summary Import an Army Forge list as a player's roster
// @Tags import
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body importer.ImportRequest true "list url and player"
// @Success 200 {object} map[string]any
// @Router /api/games/{code}/import-army [post]
func (h *ImportHandler) ImportArmy(c *gin.Context) {
	var req importer.ImportRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, result, err := h.imports.ImportArmy(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"game":   updated,
		"result": result,
	})
}
