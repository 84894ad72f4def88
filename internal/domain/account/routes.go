package account

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts login and the lookup tables on public and the
// account mutations on admin.
func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.POST("/login", h.Login)
	public.GET("/usuarios/productores", h.ListProducers)
	public.GET("/tipo_usuario", h.ListUserTypes)
	public.GET("/tipo_archivo", h.ListFileTypes)

	admin.POST("/usuario", h.CreateUser)
	admin.GET("/usuarios", h.ListUsers)
	admin.PUT("/usuario/:id", h.UpdateUser)
	admin.DELETE("/usuario/:id", h.DeleteUser)
	admin.POST("/tipo_usuario", h.CreateUserType)
	admin.PUT("/tipo_usuario/:id", h.UpdateUserType)
	admin.POST("/tipo_archivo", h.CreateFileType)
}
