package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/repository"
	"github.com/longvu/wavechat/pkg/storage"
)

// Max upload size: 50MB
const maxUploadSize = 50 << 20

// Allowed MIME types
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedFileTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/zip":    true,
	"video/mp4":          true,
	"video/webm":         true,
	"audio/mpeg":         true,
	"audio/ogg":          true,
	"audio/wav":          true,
}

// UploadHandler handles file upload endpoints
type UploadHandler struct {
	storage  storage.Storage
	fileRepo *repository.FileRepository
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(storage storage.Storage, fileRepo *repository.FileRepository) *UploadHandler {
	return &UploadHandler{storage: storage, fileRepo: fileRepo}
}

// UploadFile godoc
// @Summary Upload a file
// @Description Upload a file to storage and register it to the current user. The returned file_id can be attached to image/file messages by the uploader only.
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Success 201 {object} model.UploadResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 413 {object} model.ErrorResponse
// @Router /upload [post]
func (h *UploadHandler) UploadFile(c *gin.Context) {
	// Limit request body size
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if err.Error() == "http: request body too large" {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "File too large (max 50MB)"})
			return
		}
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "File is required", Message: err.Error()})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Unable to detect file type"})
		return
	}

	folder := determineFolder(contentType)
	if folder == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "Unsupported file type",
			Message: "Allowed: jpg, png, gif, webp, mp4, webm, pdf, doc, zip, mp3, ogg, wav",
		})
		return
	}

	result, err := h.storage.Upload(c.Request.Context(), file, header, folder)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to upload file", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	record := &model.File{
		OwnerID:  userID,
		Key:      result.Key,
		Bucket:   h.storage.Bucket(),
		URL:      result.URL,
		FileName: result.FileName,
		FileSize: result.FileSize,
		MimeType: result.MimeType,
	}
	if err := h.fileRepo.Create(record); err != nil {
		// Orphaned blob, remove it so storage does not leak
		_ = h.storage.Delete(c.Request.Context(), result.Key)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to save file record"})
		return
	}

	c.JSON(http.StatusCreated, model.UploadResponse{
		FileID:   record.ID,
		URL:      record.URL,
		FileName: record.FileName,
		FileSize: record.FileSize,
		MimeType: record.MimeType,
	})
}

// determineFolder returns the storage folder based on content type
func determineFolder(contentType string) string {
	ct := strings.ToLower(contentType)

	if allowedImageTypes[ct] {
		return "images"
	}
	if allowedFileTypes[ct] {
		if strings.HasPrefix(ct, "audio/") {
			return "audio"
		}
		if strings.HasPrefix(ct, "video/") {
			return "videos"
		}
		return "files"
	}
	return "" // unsupported
}
