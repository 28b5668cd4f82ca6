package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workbench/internal/domain"
	"workbench/internal/history"
)

type HistoryController struct {
	ledger *history.Ledger
}

func NewHistoryController(l *history.Ledger) *HistoryController {
	return &HistoryController{ledger: l}
}

// ListHistory handles GET /api/v1/history?connectionId=&status=success|error&q=.
func (hc *HistoryController) ListHistory(c *gin.Context) {
	var f history.Filter
	if raw := c.Query("connectionId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			sendError(c, ErrCodeInvalidRequest, "Invalid connectionId")
			return
		}
		f.ConnectionID = id
	}
	status, err := history.ParseStatus(c.Query("status"))
	if err != nil {
		handleError(c, err)
		return
	}
	f.Status = status
	f.Term = c.Query("q")

	entries, err := hc.ledger.List(c.Request.Context(), f)
	if err != nil {
		handleError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	sendOK(c, http.StatusOK, entries)
}

// GetEntry handles GET /api/v1/history/:id.
func (hc *HistoryController) GetEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	e, err := hc.ledger.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/v1/history/:id.
func (hc *HistoryController) DeleteEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := hc.ledger.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, gin.H{"id": id})
}

// ClearHistory handles DELETE /api/v1/history.
func (hc *HistoryController) ClearHistory(c *gin.Context) {
	n, err := hc.ledger.ClearAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, gin.H{"deleted": n})
}
