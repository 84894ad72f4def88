package account

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jm9710/appProducotres/internal/domain/ingest"
	"github.com/Jm9710/appProducotres/internal/pkg/response"
	"github.com/Jm9710/appProducotres/internal/pkg/validator"
)

type Handler struct {
	service *Service
	log     zerolog.Logger
}

func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("component", "account_handler").Logger(),
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissingData):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Faltan datos")
	case errors.Is(err, ErrUnknownField):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Campo no permitido")
	case errors.Is(err, ErrInvalidUserType):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Tipo de usuario no válido")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Usuario no encontrado")
	case errors.Is(err, ErrUserTypeNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Tipo de usuario no encontrado")
	case errors.Is(err, ErrWrongPassword):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Contraseña incorrecta")
	case errors.Is(err, ErrUsernameTaken):
		response.Error(c, http.StatusConflict, "CONFLICT", "El nombre de usuario ya existe")
	case errors.Is(err, ErrPurgeFailed) && errors.Is(err, ingest.ErrRemoteStorage):
		response.Error(c, http.StatusInternalServerError, "REMOTE_STORAGE_ERROR", "Error al eliminar los archivos del usuario en S3")
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error interno del servidor")
	}
}

// bindJSON decodes the body into v and checks its validate tags. It writes
// "Faltan datos" and returns false on any failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Faltan datos")
		return false
	}
	if errs := validator.Validate(v); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Faltan datos", errs)
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "ID no válido")
		return 0, false
	}
	return id, true
}

// Login handles POST /api/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusOK, gin.H{
		"token":         out.Token,
		"tipo_usuario":  out.TipoUsuario,
		"nom_us":        out.NomUs,
		"nombre":        out.Nombre,
		"cod_productor": out.CodProductor,
	})
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusCreated, gin.H{
		"msg":     "Usuario creado exitosamente",
		"usuario": u,
	})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

func (h *Handler) ListProducers(c *gin.Context) {
	producers, err := h.service.ListProducers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, producers)
}

// UpdateUser handles PUT /api/usuario/:id. Only the fields of
// UpdateUserRequest are accepted.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, err := DecodeUpdate(c.Request.Body)
	if err != nil {
		if !errors.Is(err, ErrUnknownField) {
			err = ErrMissingData
		}
		h.writeError(c, err)
		return
	}

	u, err := h.service.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusOK, gin.H{
		"msg":     "Usuario actualizado exitosamente",
		"usuario": u,
	})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusOK, gin.H{"msg": "Usuario eliminado exitosamente"})
}

func (h *Handler) CreateUserType(c *gin.Context) {
	var req TipoRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.service.CreateUserType(c.Request.Context(), req.Tipo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusCreated, gin.H{
		"msg":          "Tipo de usuario creado exitosamente",
		"tipo_usuario": t,
	})
}

func (h *Handler) ListUserTypes(c *gin.Context) {
	types, err := h.service.ListUserTypes(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, types)
}

func (h *Handler) UpdateUserType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TipoRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.service.UpdateUserType(c.Request.Context(), id, req.Tipo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusOK, gin.H{
		"msg":          "Tipo de usuario actualizado exitosamente",
		"tipo_usuario": t,
	})
}

func (h *Handler) CreateFileType(c *gin.Context) {
	var req TipoRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.service.CreateFileType(c.Request.Context(), req.Tipo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Body(c, http.StatusCreated, gin.H{
		"msg":          "Tipo de archivo creado exitosamente",
		"tipo_archivo": t,
	})
}

func (h *Handler) ListFileTypes(c *gin.Context) {
	types, err := h.service.ListFileTypes(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, types)
}
