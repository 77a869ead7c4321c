package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"roofcrm-backend/models"
	"roofcrm-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileHandler handles HTTP requests for lead files
type FileHandler struct {
	fileService         *service.FileService
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(fileService *service.FileService, notificationService *service.NotificationService, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		fileService:         fileService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// UploadDual handles POST /api/files/upload-dual
func (h *FileHandler) UploadDual(c *gin.Context) {
	h.upload(c, "upload", "", "")
}

// ChatUpload handles POST /api/files/chat-upload. Attachments shared in chat default to the
// "chat" category and are recorded with the chat source.
func (h *FileHandler) ChatUpload(c *gin.Context) {
	h.upload(c, "chat", "chat_attachment", "chat")
}

func (h *FileHandler) upload(c *gin.Context, source, defaultFileType, defaultCategory string) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	leadID, err := uuid.Parse(c.PostForm("leadId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_LEAD_ID", "leadId is required and must be a valid ID")
		return
	}

	if fileHeader.Size > h.fileService.MaxFileSize() {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.fileService.MaxFileSize()))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondInternal(c, h.logger, "FILE_OPEN_ERROR", err)
		return
	}
	defer file.Close()

	user := currentUser(c)
	req := service.UploadFileRequest{
		Data:     file,
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		LeadID:   leadID,
		FileType: formValue(c, "fileType", defaultFileType),
		Category: formValue(c, "category", defaultCategory),
	}
	if v := strings.TrimSpace(c.PostForm("customFileName")); v != "" {
		req.CustomFileName = &v
	}
	if v := strings.TrimSpace(c.PostForm("description")); v != "" {
		req.Description = &v
	}
	if user != nil {
		req.UploadedBy = &user.ID
	}

	result, err := h.fileService.UploadFile(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUploadFailed) {
			h.logger.Error("File upload failed on every backend", zap.String("lead_id", leadID.String()), zap.Error(err))
			reportError(c, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": err.Error(),
				"error": gin.H{
					"code":    "UPLOAD_FAILED",
					"message": err.Error(),
				},
			})
			return
		}
		respondServiceError(c, h.logger, err, "UPLOAD_FAILED")
		return
	}

	if h.notificationService != nil {
		h.notificationService.SendFileUploadedNotification(c.Request.Context(), service.FileUploadedEvent{
			LeadID:   leadID,
			LeadName: result.Lead.Name,
			FileID:   result.File.ID,
			FileName: result.File.Filename,
			Uploader: user,
			Source:   source,
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"data":     result.File,
		"message":  result.Message,
		"warnings": result.Warnings,
	})
}

// GetFileURL handles GET /api/files/url/:id?type=view|download
func (h *FileHandler) GetFileURL(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "file")
	if !ok {
		return
	}
	urlType := models.URLType(c.DefaultQuery("type", string(models.URLTypeView)))

	url, err := h.fileService.GetFileURL(c.Request.Context(), id, urlType)
	if err != nil {
		respondServiceError(c, h.logger, err, "URL_LOOKUP_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
		"type":    urlType,
	})
}

// DeleteFile handles DELETE /api/files/:id
func (h *FileHandler) DeleteFile(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "file")
	if !ok {
		return
	}

	result, err := h.fileService.DeleteFile(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDeleteIncomplete) {
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"data":    result,
				"error": gin.H{
					"code":    "DELETE_INCOMPLETE",
					"message": result.Message,
				},
			})
			return
		}
		respondServiceError(c, h.logger, err, "DELETE_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": result.Message,
	})
}

// SyncFile handles POST /api/files/:id/sync
func (h *FileHandler) SyncFile(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "file")
	if !ok {
		return
	}

	file, err := h.fileService.SyncFile(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, err, "SYNC_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    file,
		"message": "File stored in blob storage and Google Drive",
	})
}

// ListLeadFiles handles GET /api/leads/:id/files
func (h *FileHandler) ListLeadFiles(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	files, err := h.fileService.ListLeadFiles(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, err, "LIST_FAILED")
		return
	}
	if files == nil {
		files = []*models.File{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    files,
	})
}

func formValue(c *gin.Context, key, fallback string) string {
	if v := strings.TrimSpace(c.PostForm(key)); v != "" {
		return v
	}
	return fallback
}
