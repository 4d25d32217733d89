package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ecotrack-api-server/config"
	"ecotrack-api-server/internal/auth"
	"ecotrack-api-server/internal/database"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"
	"ecotrack-api-server/internal/store/memstore"
)

func init() {
	auth.HashCost = bcrypt.MinCost
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cfg := config.SeedConfig{AdminEmail: "admin@ecotrack.local", AdminPassword: "changeme"}

	require.NoError(t, database.Seed(ctx, st, cfg))
	require.NoError(t, database.Seed(ctx, st, cfg), "seeding twice is a no-op")

	admins, err := st.Users().List(ctx, store.UserFilter{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.True(t, auth.CheckPasswordHash("changeme", admins[0].Password))
	assert.Equal(t, models.StatusActive, admins[0].Status)

	settings, err := st.Settings().Get(ctx)
	require.NoError(t, err)
	assert.Len(t, settings.Pricing, len(models.WasteTypes))
}

func TestSeedKeepsExistingSettings(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	custom := models.DefaultSettings()
	custom.PickupBaseFee = 9
	require.NoError(t, st.Settings().Save(ctx, &custom))

	require.NoError(t, database.Seed(ctx, st, config.SeedConfig{}))

	settings, err := st.Settings().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9.0, settings.PickupBaseFee)

	users, err := st.Users().List(ctx, store.UserFilter{})
	require.NoError(t, err)
	assert.Empty(t, users, "no admin without credentials")
}
