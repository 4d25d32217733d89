package handlers

import (
	"net/http"

	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	Store store.Store
}

// ListActivity returns the newest entries first. Non-admins only see their own.
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	logs, err := h.Store.Activity().List(c.Request.Context(), store.ActivityFilter{
		UserID: scopedUserID(c),
		Action: c.Query("action"),
		Limit:  queryLimit(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	c.JSON(http.StatusOK, logs)
}
