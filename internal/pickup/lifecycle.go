// Package pickup implements the pickup job lifecycle: who may move a job
// between states, and what happens to points and earnings when it completes.
package pickup

import (
	"errors"

	"ecotrack-api-server/internal/models"
)

var (
	ErrInvalidTransition = errors.New("pickup: invalid status transition")
	ErrForbidden         = errors.New("pickup: not allowed for this user")
	ErrAlreadyTaken      = errors.New("pickup: changed by someone else")
	ErrDriverUnavailable = errors.New("pickup: driver is not available")
	ErrInvalidInput      = errors.New("pickup: invalid input")
)

// transitions lists, for each state, the states it may move to.
// completed and cancelled are terminal.
var transitions = map[models.PickupStatus][]models.PickupStatus{
	models.PickupPending:    {models.PickupAccepted, models.PickupCancelled},
	models.PickupAccepted:   {models.PickupInProgress, models.PickupPending, models.PickupCancelled},
	models.PickupInProgress: {models.PickupCompleted},
}

// CanTransition reports whether a pickup may move from one state to another.
func CanTransition(from, to models.PickupStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesOf returns every state that may move to the given one.
func sourcesOf(to models.PickupStatus) []models.PickupStatus {
	var out []models.PickupStatus
	for _, from := range []models.PickupStatus{models.PickupPending, models.PickupAccepted, models.PickupInProgress} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// CanView reports whether the actor may read the pickup. Drivers can see
// open jobs so they can decide to claim them.
func CanView(actor models.Actor, p *models.Pickup) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDriver:
		return p.DriverID == actor.UserID || (p.Status == models.PickupPending && p.DriverID == "")
	default:
		return p.UserID == actor.UserID
	}
}
