package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workbench/internal/schema"
)

type SchemaController struct {
	cache *schema.Cache
}

func NewSchemaController(cache *schema.Cache) *SchemaController {
	return &SchemaController{cache: cache}
}

// GetSchema handles GET /api/v1/schema/:connectionId.
func (sc *SchemaController) GetSchema(c *gin.Context) {
	id, ok := idParam(c, "connectionId")
	if !ok {
		return
	}
	snap, err := sc.cache.GetSchema(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, snap)
}

// RefreshSchema handles POST /api/v1/schema/:connectionId/refresh.
func (sc *SchemaController) RefreshSchema(c *gin.Context) {
	id, ok := idParam(c, "connectionId")
	if !ok {
		return
	}
	snap, err := sc.cache.RefreshSchema(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, snap)
}

// GetTableDetails handles GET /api/v1/schema/:connectionId/tables/:table.
func (sc *SchemaController) GetTableDetails(c *gin.Context) {
	id, ok := idParam(c, "connectionId")
	if !ok {
		return
	}
	details, err := sc.cache.GetTableDetails(c.Request.Context(), id, c.Param("table"))
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, details)
}
