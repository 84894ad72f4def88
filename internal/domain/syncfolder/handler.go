// Package syncfolder exposes the file-sync backend to the machines that
// poll it: list a folder, push a file, pull a file and move it away once
// processed.
package syncfolder

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jm9710/appProducotres/internal/filesync"
	"github.com/Jm9710/appProducotres/internal/pkg/response"
	"github.com/Jm9710/appProducotres/internal/storage"
)

type Handler struct {
	backend filesync.Backend
	log     zerolog.Logger
}

func NewHandler(backend filesync.Backend, log zerolog.Logger) *Handler {
	return &Handler{
		backend: backend,
		log:     log.With().Str("component", "syncfolder_handler").Logger(),
	}
}

type moveRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func badRequest(c *gin.Context, msg string) {
	response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", msg)
}

// backendError reports a failed backend call. The details stay in the log.
func (h *Handler) backendError(c *gin.Context, op string, err error) {
	h.log.Error().Err(err).Str("op", op).Msg("file sync call failed")
	response.Error(c, http.StatusBadRequest, "SYNC_ERROR", "Error en "+op+" de Dropbox")
}

// List handles GET /list?folder=.
func (h *Handler) List(c *gin.Context) {
	folder := filesync.NormPath(c.Query("folder"))
	entries, err := h.backend.List(c.Request.Context(), folder)
	if err != nil {
		h.backendError(c, "listar_archivos", err)
		return
	}
	if entries == nil {
		entries = []filesync.Entry{}
	}
	response.Success(c, http.StatusOK, entries)
}

// Upload handles POST /upload (multipart: file, path).
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	dst := strings.TrimSpace(c.PostForm("path"))
	if err != nil || dst == "" {
		badRequest(c, "Falta file o path")
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "No se pudo leer el archivo")
		return
	}
	defer f.Close()

	dst = filesync.NormPath(dst)
	if err := h.backend.Upload(c.Request.Context(), dst, f, fh.Size); err != nil {
		h.backendError(c, "subir_archivo", err)
		return
	}
	response.Body(c, http.StatusOK, gin.H{"msg": "Archivo " + dst + " subido con éxito"})
}

// Download handles GET /download?path= and streams the file as an attachment.
func (h *Handler) Download(c *gin.Context) {
	src := strings.TrimSpace(c.Query("path"))
	if src == "" {
		badRequest(c, "Falta path")
		return
	}

	data, name, err := h.backend.Download(c.Request.Context(), src)
	if err != nil {
		h.backendError(c, "descargar_archivo", err)
		return
	}
	h.attachment(c, name, data)
}

// Move handles POST /move (json: from, to).
func (h *Handler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Faltan from/to")
		return
	}

	from, to := filesync.NormPath(req.From), filesync.NormPath(req.To)
	if err := h.backend.Move(c.Request.Context(), from, to); err != nil {
		h.backendError(c, "mover_archivo", err)
		return
	}
	response.Body(c, http.StatusOK, gin.H{"msg": "Archivo movido de " + from + " a " + to})
}

// Consume handles GET /consume?path=&dest=: download, then move to dest.
// The file is only moved once it was read.
func (h *Handler) Consume(c *gin.Context) {
	src := strings.TrimSpace(c.Query("path"))
	dst := strings.TrimSpace(c.Query("dest"))
	if src == "" || dst == "" {
		badRequest(c, "Faltan path/dest")
		return
	}

	data, name, err := filesync.Consume(c.Request.Context(), h.backend, filesync.NormPath(src), filesync.NormPath(dst))
	if err != nil {
		h.backendError(c, "consumir_archivo", err)
		return
	}
	h.attachment(c, name, data)
}

func (h *Handler) attachment(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", storage.ContentDisposition(name))
	c.Data(http.StatusOK, storage.ContentTypeFor(name), data)
}
