package routes

import (
	"example.com/backstage/services/solar/api/handlers"
	"example.com/backstage/services/solar/api/middleware"
	"example.com/backstage/services/solar/internal/repository"
	"example.com/backstage/services/solar/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, svc service.Service, repo repository.Repository, log *logrus.Logger) {
	// Health check
	r.GET("/health", handlers.HealthCheck)

	// API routes, all tenant scoped behind API key auth
	api := r.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(repo, log))

	adapterHandler := handlers.NewAdapterHandler(svc, log)
	solar := api.Group("/solar")
	{
		solar.POST("/command", adapterHandler.Handle)
	}
}
