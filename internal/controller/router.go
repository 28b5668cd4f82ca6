package controller

import (
	"github.com/gin-gonic/gin"

	"workbench/internal/history"
	"workbench/internal/metrics"
	"workbench/internal/middleware"
	"workbench/internal/registry"
	"workbench/internal/schema"
	"workbench/internal/service"
)

// Deps holds the components the HTTP API serves.
type Deps struct {
	Registry *registry.Registry
	Queries  *service.QueryService
	Results  *service.ResultService
	History  *history.Ledger
	Schema   *schema.Cache
	Events   *service.Hub
	Metrics  *metrics.Collector

	// AccessLog enables gin's request logger.
	AccessLog bool
}

// NewRouter builds the gin engine with every /api/v1 route.
func NewRouter(d Deps) *gin.Engine {
	connectionController := NewConnectionController(d.Registry)
	queryController := NewQueryController(d.Queries, d.Results)
	historyController := NewHistoryController(d.History)
	schemaController := NewSchemaController(d.Schema)
	eventsController := NewEventsController(d.Events)
	healthController := NewHealthController(d.Registry, d.Events)

	router := gin.New()

	// Add middleware
	if d.AccessLog {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if d.Metrics != nil {
		router.Use(middleware.PrometheusMiddleware(d.Metrics))
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Health check endpoint (always available)
	router.GET("/health", healthController.HealthCheck)

	// API v1 group
	api := router.Group("/api/v1")
	{
		api.GET("/health", healthController.HealthCheck)
		if d.Metrics != nil {
			api.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
		}
		api.GET("/events", eventsController.Stream)
	}

	connections := api.Group("/connections")
	{
		connections.GET("", connectionController.ListConnections)
		connections.POST("", connectionController.CreateConnection)
		connections.POST("/test", connectionController.TestConnection)
		connections.GET("/:id", connectionController.GetConnection)
		connections.PUT("/:id", connectionController.UpdateConnection)
		connections.DELETE("/:id", connectionController.DeleteConnection)
		connections.POST("/:id/connect", connectionController.Connect)
		connections.POST("/:id/disconnect", connectionController.Disconnect)
	}

	api.POST("/query", queryController.Execute)

	results := api.Group("/results")
	{
		results.GET("/:connectionId", queryController.GetResults)
		results.GET("/:connectionId/export/:format", queryController.ExportResults)
	}

	hist := api.Group("/history")
	{
		hist.GET("", historyController.ListHistory)
		hist.DELETE("", historyController.ClearHistory)
		hist.GET("/:id", historyController.GetEntry)
		hist.DELETE("/:id", historyController.DeleteEntry)
	}

	schemas := api.Group("/schema")
	{
		schemas.GET("/:connectionId", schemaController.GetSchema)
		schemas.POST("/:connectionId/refresh", schemaController.RefreshSchema)
		schemas.GET("/:connectionId/tables/:table", schemaController.GetTableDetails)
	}

	return router
}
