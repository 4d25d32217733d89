package handlers

import (
	"fmt"
	"net/http"
	"time"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/rewards"
	"ecotrack-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// WasteHandler records recycling done by users themselves.
type WasteHandler struct {
	Store    store.Store
	Events   events.Publisher
	Activity *activity.Recorder
}

type LogWasteRequest struct {
	WasteType  models.WasteType `json:"wasteType" binding:"required,wastetype"`
	WeightKg   float64          `json:"weightKg" binding:"required,gt=0"`
	Notes      string           `json:"notes"`
	ImageURL   string           `json:"imageURL"`
	RecordedAt *time.Time       `json:"recordedAt"`
}

func (h *WasteHandler) LogWaste(c *gin.Context) {
	var req LogWasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	settings, err := store.CurrentSettings(ctx, h.Store.Settings())
	if err != nil {
		respondError(c, err)
		return
	}
	points, err := rewards.Points(settings, req.WasteType, req.WeightKg)
	if err != nil {
		respondError(c, err)
		return
	}

	actor := middleware.CurrentActor(c)
	now := time.Now()
	recordedAt := now
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		if req.RecordedAt.After(now) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recordedAt cannot be in the future"})
			return
		}
		recordedAt = *req.RecordedAt
	}

	record := &models.WasteRecord{
		RecordID:   models.NewBusinessID("WST"),
		UserID:     actor.UserID,
		WasteType:  req.WasteType,
		WeightKg:   req.WeightKg,
		Points:     points,
		Source:     models.SourceSelf,
		ImageURL:   req.ImageURL,
		Notes:      req.Notes,
		RecordedAt: recordedAt,
		CreatedAt:  now,
	}
	if err := h.Store.WasteRecords().Create(ctx, record); err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.Users().Increment(ctx, actor.UserID, store.UserIncrement{
		Points:          points,
		TotalRecycledKg: req.WeightKg,
	}); err != nil {
		log.Error().Err(err).Str("userID", actor.UserID).Str("recordID", record.RecordID).Msg("credit points for waste record")
	}

	h.Activity.Record(ctx, actor, activity.Entry{
		Action:      models.ActionWasteLogged,
		EntityType:  "waste_record",
		EntityID:    record.RecordID,
		Description: fmt.Sprintf("Logged %.2f kg of %s for %d points", record.WeightKg, record.WasteType, record.Points),
	})
	events.Emit(ctx, h.Events, events.Event{Type: events.WasteLogged, Data: record, UserID: actor.UserID})

	c.JSON(http.StatusCreated, record)
}

// ListWaste returns the caller's records; admins may pick a user or see all.
func (h *WasteHandler) ListWaste(c *gin.Context) {
	from, err := queryTime(c, "from", false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' date"})
		return
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' date"})
		return
	}
	wasteType := models.WasteType(c.Query("wasteType"))
	if wasteType != "" && !wasteType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown waste type"})
		return
	}

	records, err := h.Store.WasteRecords().List(c.Request.Context(), store.WasteFilter{
		UserID:    scopedUserID(c),
		WasteType: wasteType,
		From:      from,
		To:        to,
		Limit:     queryLimit(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []models.WasteRecord{}
	}
	c.JSON(http.StatusOK, records)
}

type WasteStatsResponse struct {
	Totals        []models.WasteTotals `json:"totals"`
	TotalWeightKg float64              `json:"totalWeightKg"`
	TotalPoints   int64                `json:"totalPoints"`
	TotalRecords  int64                `json:"totalRecords"`
}

func (h *WasteHandler) Stats(c *gin.Context) {
	totals, err := h.Store.WasteRecords().Totals(c.Request.Context(), scopedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := WasteStatsResponse{Totals: totals}
	if resp.Totals == nil {
		resp.Totals = []models.WasteTotals{}
	}
	for _, t := range totals {
		resp.TotalWeightKg += t.WeightKg
		resp.TotalPoints += t.Points
		resp.TotalRecords += t.Count
	}
	c.JSON(http.StatusOK, resp)
}

// scopedUserID is the caller for non-admins; admins choose with ?userID= and
// get every user when it is empty.
func scopedUserID(c *gin.Context) string {
	actor := middleware.CurrentActor(c)
	if actor.IsAdmin() {
		return c.Query("userID")
	}
	return actor.UserID
}
