package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	fileService *services.FileService
}

func NewFileHandler(fileService *services.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload stores a file in a sanitized folder (default general)
// POST /api/files/upload
func (h *FileHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "No file provided")
		return
	}

	stored, err := h.fileService.Upload(c.Request.Context(), actorFrom(c), c.PostForm("folder"), fh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "File uploaded successfully", "file": stored})
}

// Download streams an object the caller may read
// GET /api/files/download/*path
func (h *FileHandler) Download(c *gin.Context) {
	rc, info, err := h.fileService.Download(c.Request.Context(), actorFrom(c), c.Param("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `inline; filename="`+path.Base(info.Key)+`"`)
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Warnf("[Files] stream %s interrupted: %v", info.Key, err)
	}
}

// Info
// GET /api/files/info/*path
func (h *FileHandler) Info(c *gin.Context) {
	info, err := h.fileService.Info(c.Request.Context(), actorFrom(c), c.Param("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"file": info})
}

// Delete
// DELETE /api/files/delete/*path
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.fileService.Delete(c.Request.Context(), actorFrom(c), c.Param("path")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "File deleted successfully")
}

// ProjectFiles
// GET /api/files/project/:id
func (h *FileHandler) ProjectFiles(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	files, meta, err := h.fileService.ProjectFiles(actorFrom(c), id, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, files, meta)
}

// Cleanup removes orphaned objects (admin)
// POST /api/files/cleanup
func (h *FileHandler) Cleanup(c *gin.Context) {
	n, err := h.fileService.Cleanup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":       "Cleanup completed. " + strconv.Itoa(n) + " orphaned files removed.",
		"cleaned_count": n,
	})
}

// Stats (admin)
// GET /api/files/stats
func (h *FileHandler) Stats(c *gin.Context) {
	stats, err := h.fileService.Stats()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"stats": stats})
}
