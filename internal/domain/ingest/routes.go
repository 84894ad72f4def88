package ingest

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts lookups on public and mutations on admin, which the
// caller guards with JWT and role middleware.
func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/productor/archivos", h.ClassifiedFiles)
	public.GET("/productor/kml", h.ProducerKML)
	public.GET("/archivos", h.ListFiles)
	public.GET("/kml/:cod_productor", h.KMLLinks)

	admin.POST("/subir_kml", h.UploadKML)
	admin.POST("/subir_archivo", h.UploadFile)
	admin.DELETE("/eliminar_archivo", h.DeleteFile)
	admin.DELETE("/archivo/:id", h.DeleteFileByID)
	admin.GET("/reconciliacion", h.Reconcile)
}

// RegisterWebSocket mounts the live event stream. It authenticates with the
// token query parameter.
func (h *Handler) RegisterWebSocket(r gin.IRoutes) {
	r.GET("/ws/eventos", h.Events)
}
