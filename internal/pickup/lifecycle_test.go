package pickup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ecotrack-api-server/internal/models"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.PickupStatus]bool{
		{models.PickupPending, models.PickupAccepted}:     true,
		{models.PickupPending, models.PickupCancelled}:    true,
		{models.PickupAccepted, models.PickupInProgress}:  true,
		{models.PickupAccepted, models.PickupPending}:     true,
		{models.PickupAccepted, models.PickupCancelled}:   true,
		{models.PickupInProgress, models.PickupCompleted}: true,
	}
	all := []models.PickupStatus{
		models.PickupPending, models.PickupAccepted, models.PickupInProgress,
		models.PickupCompleted, models.PickupCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]models.PickupStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	for _, s := range []models.PickupStatus{models.PickupCompleted, models.PickupCancelled} {
		assert.True(t, s.Terminal())
		assert.Empty(t, transitions[s])
	}
}

func TestSourcesOf(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.PickupStatus{models.PickupPending, models.PickupAccepted},
		sourcesOf(models.PickupCancelled))
	assert.Equal(t, []models.PickupStatus{models.PickupInProgress}, sourcesOf(models.PickupCompleted))
}

func TestCanView(t *testing.T) {
	open := &models.Pickup{UserID: "U1", Status: models.PickupPending}
	taken := &models.Pickup{UserID: "U1", DriverID: "D1", Status: models.PickupAccepted}

	admin := models.Actor{UserID: "A1", Role: models.RoleAdmin}
	owner := models.Actor{UserID: "U1", Role: models.RoleUser}
	stranger := models.Actor{UserID: "U2", Role: models.RoleUser}
	driver := models.Actor{UserID: "D1", Role: models.RoleDriver}
	otherDriver := models.Actor{UserID: "D2", Role: models.RoleDriver}

	assert.True(t, CanView(admin, taken))
	assert.True(t, CanView(owner, taken))
	assert.False(t, CanView(stranger, taken))
	assert.True(t, CanView(driver, taken))
	assert.False(t, CanView(otherDriver, taken))
	assert.True(t, CanView(otherDriver, open))
}
