package http

import "github.com/gin-gonic/gin"

// Register registers the project routes
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/projects", h.ListProjects)
	rg.GET("/projects/all", h.ListAllProjects)
	rg.POST("/projects/refetch", h.RefetchProjects)
}
