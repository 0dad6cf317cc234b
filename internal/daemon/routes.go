package daemon

import (
	"html/template"

	"github.com/gin-gonic/gin"
)

// registerRoutes builds the router with every page and API route.
func (d *Daemon) registerRoutes() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(uiFS, "ui/*.html")))

	router.GET("/", d.settingsPage)
	router.GET("/health", d.health)
	router.POST("/refresh", d.refresh)

	router.GET("/settings", d.getSettings)
	router.PUT("/settings/:field", d.setSetting)

	router.GET("/runs", d.listRuns)
	router.GET("/runs/:id", d.getRun)

	return router
}
