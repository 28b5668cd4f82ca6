package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workbench/internal/domain"
	"workbench/internal/registry"
)

type ConnectionController struct {
	registry *registry.Registry
}

func NewConnectionController(r *registry.Registry) *ConnectionController {
	return &ConnectionController{registry: r}
}

// ListConnections handles GET /api/v1/connections.
func (cc *ConnectionController) ListConnections(c *gin.Context) {
	conns, err := cc.registry.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if conns == nil {
		conns = []domain.ConnectionDescriptor{}
	}
	sendOK(c, http.StatusOK, conns)
}

// CreateConnection handles POST /api/v1/connections.
func (cc *ConnectionController) CreateConnection(c *gin.Context) {
	var in domain.ConnectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	conn, err := cc.registry.Create(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusCreated, conn)
}

// GetConnection handles GET /api/v1/connections/:id.
func (cc *ConnectionController) GetConnection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conn, err := cc.registry.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, conn)
}

// UpdateConnection handles PUT /api/v1/connections/:id. Absent fields are left untouched.
func (cc *ConnectionController) UpdateConnection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var patch domain.ConnectionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		sendError(c, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	conn, err := cc.registry.Update(c.Request.Context(), id, patch)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, conn)
}

// DeleteConnection handles DELETE /api/v1/connections/:id.
func (cc *ConnectionController) DeleteConnection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := cc.registry.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, gin.H{"id": id})
}

// Connect handles POST /api/v1/connections/:id/connect.
func (cc *ConnectionController) Connect(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conn, err := cc.registry.Connect(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, conn)
}

// Disconnect handles POST /api/v1/connections/:id/disconnect.
func (cc *ConnectionController) Disconnect(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conn, err := cc.registry.Disconnect(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, conn)
}

// TestConnection handles POST /api/v1/connections/test. Nothing is saved.
func (cc *ConnectionController) TestConnection(c *gin.Context) {
	var in domain.ConnectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	res, err := cc.registry.TestConnection(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	sendOK(c, http.StatusOK, res)
}
