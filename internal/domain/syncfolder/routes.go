package syncfolder

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/list", h.List)
	r.POST("/upload", h.Upload)
	r.GET("/download", h.Download)
	r.POST("/move", h.Move)
	r.GET("/consume", h.Consume)
}
