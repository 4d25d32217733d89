package handlers

import (
	"fmt"
	"net/http"
	"time"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	Store    store.Store
	Activity *activity.Recorder
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := store.CurrentSettings(c.Request.Context(), h.Store.Settings())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// maxRatePerKg bounds admin-entered rates.
const maxRatePerKg = 10000

type UpdateSettingsRequest struct {
	Pricing           map[models.WasteType]models.Rate `json:"pricing"`
	PickupBaseFee     *float64                         `json:"pickupBaseFee" binding:"omitempty,gte=0,lte=10000"`
	MaxPickupWeightKg *float64                         `json:"maxPickupWeightKg" binding:"omitempty,gt=0,lte=100000"`
	Currency          string                           `json:"currency" binding:"omitempty,len=3"`
}

// UpdateSettings merges the request into the current settings. Waste types
// missing from pricing keep their current rates.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for wt, rate := range req.Pricing {
		if !wt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown waste type %q", wt)})
			return
		}
		if rate.PointsPerKg < 0 || rate.DriverRatePerKg < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Rates for %s cannot be negative", wt)})
			return
		}
		if rate.PointsPerKg > maxRatePerKg || rate.DriverRatePerKg > maxRatePerKg {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Rates for %s cannot exceed %d per kg", wt, maxRatePerKg)})
			return
		}
	}

	ctx := c.Request.Context()
	settings, err := store.CurrentSettings(ctx, h.Store.Settings())
	if err != nil {
		respondError(c, err)
		return
	}

	pricing := make(map[models.WasteType]models.Rate, len(models.WasteTypes))
	for wt, rate := range settings.Pricing {
		pricing[wt] = rate
	}
	for wt, rate := range req.Pricing {
		pricing[wt] = rate
	}
	settings.Pricing = pricing
	if req.PickupBaseFee != nil {
		settings.PickupBaseFee = *req.PickupBaseFee
	}
	if req.MaxPickupWeightKg != nil {
		settings.MaxPickupWeightKg = *req.MaxPickupWeightKg
	}
	if req.Currency != "" {
		settings.Currency = req.Currency
	}

	actor := middleware.CurrentActor(c)
	settings.UpdatedBy = actor.UserID
	settings.UpdatedAt = time.Now()
	if err := h.Store.Settings().Save(ctx, &settings); err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(ctx, actor, activity.Entry{
		Action:      models.ActionSettingsUpdated,
		EntityType:  "settings",
		EntityID:    models.GlobalSettingsKey,
		Description: "Updated pricing settings",
	})
	c.JSON(http.StatusOK, settings)
}
