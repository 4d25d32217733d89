package handlers

import (
	"net/http"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/upload"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	Uploads  *upload.Service
	Activity *activity.Recorder
}

// UploadFile nhận ảnh qua form field "file" và trả về URL công khai.
func (h *UploadHandler) UploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Form field 'file' is required"})
		return
	}
	if fileHeader.Size > h.Uploads.MaxBytes() {
		respondError(c, upload.ErrTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	actor := middleware.CurrentActor(c)
	result, err := h.Uploads.Upload(c.Request.Context(), actor.UserID, c.PostForm("folder"), file)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(c.Request.Context(), actor, activity.Entry{
		Action:      models.ActionFileUploaded,
		EntityType:  "file",
		EntityID:    result.Key,
		Description: "Uploaded " + fileHeader.Filename,
	})
	c.JSON(http.StatusCreated, result)
}
