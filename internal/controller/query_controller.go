package controller

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"workbench/internal/resultview"
	"workbench/internal/service"
)

type QueryController struct {
	queries *service.QueryService
	results *service.ResultService
}

func NewQueryController(queries *service.QueryService, results *service.ResultService) *QueryController {
	return &QueryController{queries: queries, results: results}
}

// ExecuteRequest is the body of POST /api/v1/query. Missing fields are reported
// by the executor as validation errors.
type ExecuteRequest struct {
	ConnectionID int64  `json:"connectionId"`
	SQL          string `json:"sql"`
}

// Execute handles POST /api/v1/query.
func (qc *QueryController) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	res, err := qc.queries.Execute(c.Request.Context(), req.ConnectionID, req.SQL)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, res)
}

// GetResults handles GET /api/v1/results/:connectionId?sort=&dir=&page=&pageSize=.
func (qc *QueryController) GetResults(c *gin.Context) {
	id, ok := idParam(c, "connectionId")
	if !ok {
		return
	}
	page, ok := intQuery(c, "page")
	if !ok {
		return
	}
	size, ok := intQuery(c, "pageSize")
	if !ok {
		return
	}
	w, err := qc.results.Window(id, service.WindowRequest{
		Sort:     c.Query("sort"),
		Dir:      resultview.Direction(c.Query("dir")),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, w)
}

// ExportResults handles GET /api/v1/results/:connectionId/export/:format as a file download.
func (qc *QueryController) ExportResults(c *gin.Context) {
	id, ok := idParam(c, "connectionId")
	if !ok {
		return
	}
	exp, err := qc.results.Export(id, c.Param("format"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	c.Data(http.StatusOK, exp.ContentType, exp.Data)
}
