// server/internal/api/handlers/user_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/auth"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

// UserHandler serves registration, login and the caller's own profile.
type UserHandler struct {
	Store    store.Store
	Tokens   *auth.TokenManager
	Events   events.Publisher
	Activity *activity.Recorder
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Role     string `json:"role" binding:"omitempty,oneof=user driver"` // admin không tự đăng ký được
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, fmt.Errorf("hash password: %w", err))
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now()
	user := &models.User{
		UserID:    models.NewBusinessID("USR"),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  hashed,
		Role:      role,
		Status:    models.StatusActive,
		Phone:     req.Phone,
		Address:   req.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.IsDriver() {
		user.Availability = models.DriverAvailable
	}

	if err := h.Store.Users().Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
			return
		}
		respondError(c, err)
		return
	}

	token, expiresAt, err := h.Tokens.GenerateJWT(user)
	if err != nil {
		respondError(c, err)
		return
	}

	actor := models.Actor{UserID: user.UserID, Role: user.Role}
	h.Activity.Record(c.Request.Context(), actor, activity.Entry{
		Action:      models.ActionRegister,
		EntityType:  "user",
		EntityID:    user.UserID,
		Description: fmt.Sprintf("Registered as %s", user.Role),
	})
	events.Emit(c.Request.Context(), h.Events, events.Event{Type: events.UserRegistered, Data: user, UserID: user.UserID})

	c.JSON(http.StatusCreated, AuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.Users().GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !user.IsActive() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is suspended"})
		return
	}

	token, expiresAt, err := h.Tokens.GenerateJWT(user)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(c.Request.Context(), models.Actor{UserID: user.UserID, Role: user.Role}, activity.Entry{
		Action:      models.ActionLogin,
		EntityType:  "user",
		EntityID:    user.UserID,
		Description: "Logged in",
	})
	c.JSON(http.StatusOK, AuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.Store.Users().GetByID(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type UpdateProfileRequest struct {
	Name      *string `json:"name" binding:"omitempty,notblank"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	AvatarURL *string `json:"avatarURL"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.CurrentActor(c)
	user, err := h.Store.Users().Update(c.Request.Context(), actor.UserID, store.UserPatch{
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   req.Address,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(c.Request.Context(), actor, activity.Entry{
		Action:      models.ActionProfileUpdate,
		EntityType:  "user",
		EntityID:    actor.UserID,
		Description: "Updated profile",
	})
	c.JSON(http.StatusOK, user)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.CurrentActor(c)
	user, err := h.Store.Users().GetByID(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, fmt.Errorf("hash password: %w", err))
		return
	}
	if _, err := h.Store.Users().Update(c.Request.Context(), actor.UserID, store.UserPatch{Password: &hashed}); err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(c.Request.Context(), actor, activity.Entry{
		Action:      models.ActionPasswordChange,
		EntityType:  "user",
		EntityID:    actor.UserID,
		Description: "Changed password",
	})
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Password updated"})
}

type AvailabilityRequest struct {
	// busy do hệ thống tự đặt khi tài xế nhận đơn.
	Availability string `json:"availability" binding:"required,oneof=available offline"`
}

// SetAvailability lets a driver go on or off duty.
func (h *UserHandler) SetAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.CurrentActor(c)
	current, err := h.Store.Users().GetByID(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if current.Availability == models.DriverBusy {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot change availability during an active pickup"})
		return
	}

	driver, err := h.Store.Users().Update(c.Request.Context(), actor.UserID, store.UserPatch{Availability: &req.Availability})
	if err != nil {
		respondError(c, err)
		return
	}

	h.Activity.Record(c.Request.Context(), actor, activity.Entry{
		Action:      models.ActionAvailability,
		EntityType:  "user",
		EntityID:    actor.UserID,
		Description: "Availability set to " + req.Availability,
	})
	events.Emit(c.Request.Context(), h.Events, events.Event{Type: events.DriverUpdated, Data: driver, DriverID: driver.UserID})
	c.JSON(http.StatusOK, driver)
}
