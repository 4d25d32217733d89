// server/internal/api/handlers/admin_handler.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

// AdminHandler manages accounts and the driver fleet.
type AdminHandler struct {
	Store    store.Store
	Events   events.Publisher
	Activity *activity.Recorder
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.Store.Users().List(c.Request.Context(), store.UserFilter{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.Store.Users().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type AdminUpdateUserRequest struct {
	Name   *string `json:"name" binding:"omitempty,notblank"`
	Phone  *string `json:"phone"`
	Role   *string `json:"role" binding:"omitempty,role"`
	Status *string `json:"status" binding:"omitempty,oneof=active suspended"`
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("id")
	current, err := h.Store.Users().GetByID(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if current.IsDriver() && req.Role != nil && *req.Role != models.RoleDriver {
		busy, err := h.hasActiveJob(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if busy {
			c.JSON(http.StatusConflict, gin.H{"error": "Driver still has an active pickup"})
			return
		}
	}

	patch := store.UserPatch{Name: req.Name, Phone: req.Phone, Role: req.Role, Status: req.Status}
	// Tài xế mới được cấp quyền bắt đầu ở trạng thái sẵn sàng.
	if req.Role != nil && *req.Role == models.RoleDriver && current.Availability == "" {
		available := models.DriverAvailable
		patch.Availability = &available
	}

	user, err := h.Store.Users().Update(ctx, userID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(ctx, middleware.CurrentActor(c), activity.Entry{
		Action:      models.ActionUserUpdated,
		EntityType:  "user",
		EntityID:    userID,
		Description: fmt.Sprintf("Updated user %s (role %s, status %s)", user.Email, user.Role, user.Status),
	})
	if user.IsDriver() {
		events.Emit(ctx, h.Events, events.Event{Type: events.DriverUpdated, Data: user, DriverID: user.UserID})
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	userID := c.Param("id")
	if userID == actor.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	busy, err := h.hasActiveJob(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if busy {
		c.JSON(http.StatusConflict, gin.H{"error": "Driver still has an active pickup"})
		return
	}

	if err := h.Store.Users().Delete(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(c.Request.Context(), actor, activity.Entry{
		Action:      models.ActionUserDeleted,
		EntityType:  "user",
		EntityID:    userID,
		Description: "Deleted user " + userID,
	})
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "User deleted"})
}

// hasActiveJob reports whether the driver holds an accepted or in-progress
// pickup. Only that driver can move such a job forward.
func (h *AdminHandler) hasActiveJob(ctx context.Context, driverID string) (bool, error) {
	for _, status := range []models.PickupStatus{models.PickupAccepted, models.PickupInProgress} {
		jobs, err := h.Store.Pickups().List(ctx, store.PickupFilter{DriverID: driverID, Status: status, Limit: 1})
		if err != nil {
			return false, err
		}
		if len(jobs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

type FleetAssignmentRequest struct {
	PlateNumber string  `json:"plateNumber" binding:"required,notblank"`
	Type        string  `json:"type" binding:"required,oneof=TRUCK VAN MOTORBIKE"`
	CapacityKg  float64 `json:"capacityKg" binding:"required,gt=0"`
	Zone        string  `json:"zone"`
}

// AssignVehicle gives a driver a vehicle and a collection zone.
func (h *AdminHandler) AssignVehicle(c *gin.Context) {
	var req FleetAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	driverID := c.Param("id")
	current, err := h.Store.Users().GetByID(ctx, driverID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !current.IsDriver() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is not a driver"})
		return
	}

	vehicle := models.DriverVehicle{
		PlateNumber: strings.ToUpper(strings.TrimSpace(req.PlateNumber)),
		Type:        req.Type,
		CapacityKg:  req.CapacityKg,
		Zone:        req.Zone,
	}
	driver, err := h.Store.Users().Update(ctx, driverID, store.UserPatch{Vehicle: &vehicle})
	if err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(ctx, middleware.CurrentActor(c), activity.Entry{
		Action:      models.ActionFleetAssignment,
		EntityType:  "user",
		EntityID:    driverID,
		Description: fmt.Sprintf("Assigned %s %s to driver %s", vehicle.Type, vehicle.PlateNumber, driverID),
	})
	events.Emit(ctx, h.Events, events.Event{Type: events.DriverUpdated, Data: driver, DriverID: driverID})
	c.JSON(http.StatusOK, driver)
}

type OverviewResponse struct {
	UsersByRole         map[string]int64              `json:"usersByRole"`
	PickupsByStatus     map[models.PickupStatus]int64 `json:"pickupsByStatus"`
	TotalRecycledKg     float64                       `json:"totalRecycledKg"`
	TotalPoints         int64                         `json:"totalPoints"`
	TotalDriverEarnings float64                       `json:"totalDriverEarnings"`
	WasteTotals         []models.WasteTotals          `json:"wasteTotals"`
}

func (h *AdminHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	byRole, err := h.Store.Users().CountByRole(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	byStatus, err := h.Store.Pickups().CountByStatus(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	totals, err := h.Store.WasteRecords().Totals(ctx, "")
	if err != nil {
		respondError(c, err)
		return
	}
	earnings, err := h.Store.Users().TotalEarnings(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := OverviewResponse{
		UsersByRole:         byRole,
		PickupsByStatus:     byStatus,
		TotalDriverEarnings: earnings,
		WasteTotals:         totals,
	}
	if resp.WasteTotals == nil {
		resp.WasteTotals = []models.WasteTotals{}
	}
	for _, t := range totals {
		resp.TotalRecycledKg += t.WeightKg
		resp.TotalPoints += t.Points
	}
	c.JSON(http.StatusOK, resp)
}
