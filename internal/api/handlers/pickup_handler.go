package handlers

import (
	"net/http"
	"time"

	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/pickup"

	"github.com/gin-gonic/gin"
)

// PickupHandler exposes the pickup lifecycle over HTTP.
type PickupHandler struct {
	Service *pickup.Service
}

type CreatePickupRequest struct {
	Address           models.Address   `json:"address"`
	WasteType         models.WasteType `json:"wasteType" binding:"required,wastetype"`
	EstimatedWeightKg float64          `json:"estimatedWeightKg" binding:"gte=0"`
	ScheduledAt       *time.Time       `json:"scheduledAt"`
	Notes             string           `json:"notes"`
	ImageURL          string           `json:"imageURL"`
}

func (h *PickupHandler) CreatePickup(c *gin.Context) {
	var req CreatePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := pickup.CreateInput{
		Address:           req.Address,
		WasteType:         req.WasteType,
		EstimatedWeightKg: req.EstimatedWeightKg,
		Notes:             req.Notes,
		ImageURL:          req.ImageURL,
	}
	if req.ScheduledAt != nil {
		in.ScheduledAt = *req.ScheduledAt
	}

	p, err := h.Service.Create(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PickupHandler) ListPickups(c *gin.Context) {
	status := models.PickupStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pickup status"})
		return
	}

	pickups, err := h.Service.List(c.Request.Context(), middleware.CurrentActor(c), pickup.ListInput{
		Scope:    c.Query("scope"),
		Status:   status,
		UserID:   c.Query("userID"),
		DriverID: c.Query("driverID"),
		Limit:    queryLimit(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if pickups == nil {
		pickups = []models.Pickup{}
	}
	c.JSON(http.StatusOK, pickups)
}

func (h *PickupHandler) GetPickup(c *gin.Context) {
	p, err := h.Service.Get(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ClaimPickup: tài xế đầu tiên nhận được đơn sẽ thắng, các tài xế khác nhận 409.
func (h *PickupHandler) ClaimPickup(c *gin.Context) {
	p, err := h.Service.Claim(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PickupHandler) StartPickup(c *gin.Context) {
	p, err := h.Service.Start(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PickupHandler) ReleasePickup(c *gin.Context) {
	p, err := h.Service.Release(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type CompletePickupRequest struct {
	ActualWeightKg float64 `json:"actualWeightKg" binding:"required,gt=0"`
}

func (h *PickupHandler) CompletePickup(c *gin.Context) {
	var req CompletePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Service.Complete(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.ActualWeightKg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type CancelPickupRequest struct {
	Reason string `json:"reason"`
}

func (h *PickupHandler) CancelPickup(c *gin.Context) {
	var req CancelPickupRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.Service.Cancel(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type AssignPickupRequest struct {
	DriverID string `json:"driverID" binding:"required"`
}

// AssignPickup is the admin route that hands a pending job to a driver.
func (h *PickupHandler) AssignPickup(c *gin.Context) {
	var req AssignPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.Service.Assign(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
