package ingest

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Jm9710/appProducotres/internal/domain"
	"github.com/Jm9710/appProducotres/internal/pkg/jwt"
	"github.com/Jm9710/appProducotres/internal/pkg/response"
)

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// access is decided by the token, not the origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	service *Service
	hub     *Hub
	jwt     *jwt.Service
	log     zerolog.Logger
}

func NewHandler(service *Service, hub *Hub, jwtService *jwt.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		jwt:     jwtService,
		log:     log.With().Str("component", "ingest_handler").Logger(),
	}
}

// writeError maps service errors to responses. remoteMsg is the user facing
// text for object store failures of the calling operation.
func (h *Handler) writeError(c *gin.Context, err error, remoteMsg string) {
	switch {
	case errors.Is(err, ErrMissingCode):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se ha especificado el productor ID")
	case errors.Is(err, ErrMissingFilename):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se ha seleccionado ningún archivo")
	case errors.Is(err, ErrMissingName):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Nombre de archivo no proporcionado")
	case errors.Is(err, ErrEmptyFile):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "El archivo está vacío")
	case errors.Is(err, ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "El archivo supera el tamaño máximo permitido")
	case errors.Is(err, ErrNotKML):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "El archivo subido no es un archivo KML")
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Solicitud inválida")
	case errors.Is(err, ErrParse):
		response.Error(c, http.StatusBadRequest, "PARSE_ERROR", "El archivo KML no es un documento válido")
	case errors.Is(err, ErrProducerNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Productor no encontrado")
	case errors.Is(err, ErrFileTypeNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Tipo de archivo no encontrado")
	case errors.Is(err, ErrFileNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Archivo no encontrado")
	case errors.Is(err, ErrKMLNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "No se ha encontrado un KML asociado al productor.")
	case errors.Is(err, ErrRemoteStorage):
		response.Error(c, http.StatusInternalServerError, "REMOTE_STORAGE_ERROR", remoteMsg)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error interno del servidor")
	}
}

// formFile reads a multipart file field. It writes the error response
// itself and returns nil when the request carries no usable file.
func (h *Handler) formFile(c *gin.Context, field, missingMsg string) *multipart.FileHeader {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.opts.MaxUploadSize+multipartOverhead)

	fh, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, ErrFileTooLarge, "")
			return nil
		}
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", missingMsg)
		return nil
	}
	return fh
}

// UploadKML handles POST /api/subir_kml (multipart: archivo, productorId).
func (h *Handler) UploadKML(c *gin.Context) {
	fh := h.formFile(c, "archivo", "No se ha subido ningún archivo KML")
	if fh == nil {
		return
	}
	code := strings.TrimSpace(c.PostForm("productorId"))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se ha especificado el productor ID")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se pudo leer el archivo")
		return
	}
	defer f.Close()

	out, err := h.service.UploadKML(c.Request.Context(), UploadKMLInput{
		ProducerCode: code,
		Filename:     fh.Filename,
		Size:         fh.Size,
		Body:         f,
	})
	if err != nil {
		h.writeError(c, err, "Error al subir el archivo KML a S3")
		return
	}

	response.Body(c, http.StatusOK, gin.H{
		"msg":     "Archivo KML cargado/actualizado exitosamente",
		"geojson": out.GeoJSON,
		"kml":     out.KML,
	})
}

// UploadFile handles POST /api/subir_archivo (multipart: archivo, tipoArchivo, productorId).
func (h *Handler) UploadFile(c *gin.Context) {
	fh := h.formFile(c, "archivo", "No se ha subido ningún archivo")
	if fh == nil {
		return
	}
	rawType := strings.TrimSpace(c.PostForm("tipoArchivo"))
	if rawType == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se ha especificado el tipo de archivo")
		return
	}
	code := strings.TrimSpace(c.PostForm("productorId"))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se ha especificado el productor ID")
		return
	}
	typeID, err := strconv.ParseInt(rawType, 10, 64)
	if err != nil || typeID <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Tipo de archivo no válido")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No se pudo leer el archivo")
		return
	}
	defer f.Close()

	file, err := h.service.UploadFile(c.Request.Context(), UploadFileInput{
		ProducerCode: code,
		FileTypeID:   typeID,
		Filename:     fh.Filename,
		Size:         fh.Size,
		Body:         f,
	})
	if err != nil {
		h.writeError(c, err, "Error al subir el archivo a S3")
		return
	}

	response.Body(c, http.StatusOK, gin.H{
		"msg":     "Archivo cargado y asociado al KML exitosamente",
		"archivo": file,
	})
}

// DeleteFile handles DELETE /api/eliminar_archivo with {"archivo_nombre": "..."}.
func (h *Handler) DeleteFile(c *gin.Context) {
	var req deleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ArchivoNombre) == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Nombre de archivo no proporcionado")
		return
	}

	if err := h.service.DeleteFileByName(c.Request.Context(), req.ArchivoNombre); err != nil {
		h.writeError(c, err, "Error al eliminar archivo de S3")
		return
	}
	response.Body(c, http.StatusOK, gin.H{"msg": "Archivo y registro eliminados exitosamente"})
}

// DeleteFileByID handles DELETE /api/archivo/:id.
func (h *Handler) DeleteFileByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Identificador de archivo inválido")
		return
	}

	if err := h.service.DeleteFileByID(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "Error al eliminar archivo de S3")
		return
	}
	response.Body(c, http.StatusOK, gin.H{"msg": "Archivo y registro eliminados exitosamente"})
}

// ClassifiedFiles handles GET /api/productor/archivos?cod_productor=&categoria=.
func (h *Handler) ClassifiedFiles(c *gin.Context) {
	code := strings.TrimSpace(c.Query("cod_productor"))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Productor ID no proporcionado")
		return
	}

	listing, err := h.service.ClassifiedListing(c.Request.Context(), code, c.Query("categoria"))
	if err != nil {
		h.writeError(c, err, "Error al generar los enlaces de descarga")
		return
	}
	response.Body(c, http.StatusOK, gin.H{
		"productor":     listing.Productor,
		"cod_productor": listing.CodProductor,
		"archivos":      listing.Archivos,
	})
}

// ListFiles handles GET /api/archivos?productorId=.
func (h *Handler) ListFiles(c *gin.Context) {
	code := strings.TrimSpace(c.Query("productorId"))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Productor ID no proporcionado")
		return
	}

	items, err := h.service.ListFiles(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	response.Success(c, http.StatusOK, items)
}

// ProducerKML handles GET /api/productor/kml?cod_productor=.
func (h *Handler) ProducerKML(c *gin.Context) {
	code := strings.TrimSpace(c.Query("cod_productor"))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Código del productor no proporcionado")
		return
	}

	listing, err := h.service.ListKML(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	response.Body(c, http.StatusOK, gin.H{
		"productor":     listing.Productor,
		"cod_productor": listing.CodProductor,
		"kmls":          listing.KMLs,
	})
}

// KMLLinks handles GET /api/kml/:cod_productor for the map view.
func (h *Handler) KMLLinks(c *gin.Context) {
	urls, err := h.service.ListKMLSignedURLs(c.Request.Context(), c.Param("cod_productor"))
	if err != nil {
		h.writeError(c, err, "Error al generar los enlaces de descarga")
		return
	}
	response.Success(c, http.StatusOK, urls)
}

// Reconcile handles GET /api/reconciliacion. Without cod_productor every
// producer is checked.
func (h *Handler) Reconcile(c *gin.Context) {
	code := strings.TrimSpace(c.Query("cod_productor"))
	if code == "" {
		reports, err := h.service.ReconcileAll(c.Request.Context())
		if err != nil {
			h.writeError(c, err, "Error al listar el bucket")
			return
		}
		response.Success(c, http.StatusOK, reports)
		return
	}

	report, err := h.service.Reconcile(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err, "Error al listar el bucket")
		return
	}
	response.Success(c, http.StatusOK, report)
}

// Events upgrades GET /ws/eventos?token=JWT[&cod_productor=] to a websocket.
// Producers always receive their own code's events; administrators pick a
// code or receive everything.
func (h *Handler) Events(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}
	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	code := claims.CodProductor
	if claims.Role == domain.RoleAdmin {
		code = strings.TrimSpace(c.Query("cod_productor"))
	} else if code == "" {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: no producer code in token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.log.Debug().Int64("user_id", claims.UserID).Str("cod_productor", code).Msg("event subscriber connected")
	h.hub.ServeWS(conn, code)
}
