// Package store defines the persistence contracts used by the API handlers.
// The Mongo implementation lives in store/mongostore, an in-memory one in
// store/memstore.
package store

import (
	"context"
	"errors"
	"time"

	"ecotrack-api-server/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrConflict  = errors.New("store: conflict")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store groups the repositories of every collection.
type Store interface {
	Users() UserRepository
	Pickups() PickupRepository
	WasteRecords() WasteRecordRepository
	Settings() SettingsRepository
	Activity() ActivityRepository
}

type UserFilter struct {
	Role   string
	Status string
	Search string // case-insensitive match on name or email
}

// UserPatch lists the fields that can be changed; nil means unchanged.
type UserPatch struct {
	Name         *string
	Phone        *string
	Address      *string
	AvatarURL    *string
	Password     *string
	Role         *string
	Status       *string
	Availability *string
	Vehicle      *models.DriverVehicle
}

// UserIncrement is added atomically to the counters of a user.
type UserIncrement struct {
	Points           int64
	TotalRecycledKg  float64
	CompletedPickups int64
	Earnings         float64
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, error)
	Update(ctx context.Context, userID string, p UserPatch) (*models.User, error)
	// SwapAvailability sets availability to `to` only while it equals `from`.
	// It returns ErrConflict when the current value differs.
	SwapAvailability(ctx context.Context, userID, from, to string) (*models.User, error)
	Increment(ctx context.Context, userID string, inc UserIncrement) error
	Delete(ctx context.Context, userID string) error
	CountByRole(ctx context.Context) (map[string]int64, error)
	TotalEarnings(ctx context.Context) (float64, error)
}

type PickupFilter struct {
	UserID   string
	DriverID string
	Status   models.PickupStatus
	// Unassigned restricts to pickups with no driver.
	Unassigned bool
	Limit      int64
}

// PickupGuard is the state a pickup must be in for a transition to apply.
type PickupGuard struct {
	Statuses []models.PickupStatus
	// DriverID, when non-nil, must equal the stored driverID ("" = unassigned).
	DriverID *string
}

// PickupPatch is applied together with the status change.
type PickupPatch struct {
	Status         models.PickupStatus
	DriverID       *string
	ActualWeightKg *float64
	PointsAwarded  *int64
	DriverEarning  *float64
	CancelReason   *string
	AcceptedAt     *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	// ClearAcceptedAt resets acceptedAt, used when a driver releases a job.
	ClearAcceptedAt bool
	UpdatedAt       time.Time
}

type PickupRepository interface {
	Create(ctx context.Context, p *models.Pickup) error
	GetByID(ctx context.Context, pickupID string) (*models.Pickup, error)
	List(ctx context.Context, f PickupFilter) ([]models.Pickup, error)
	// Transition applies patch only when the stored pickup satisfies guard.
	// It returns ErrNotFound for an unknown id and ErrConflict when the guard
	// does not match.
	Transition(ctx context.Context, pickupID string, guard PickupGuard, patch PickupPatch) (*models.Pickup, error)
	CountByStatus(ctx context.Context) (map[models.PickupStatus]int64, error)
}

type WasteFilter struct {
	UserID    string
	WasteType models.WasteType
	From      time.Time
	To        time.Time
	Limit     int64
}

type WasteRecordRepository interface {
	Create(ctx context.Context, r *models.WasteRecord) error
	List(ctx context.Context, f WasteFilter) ([]models.WasteRecord, error)
	// Totals groups records by waste type; an empty userID means every user.
	Totals(ctx context.Context, userID string) ([]models.WasteTotals, error)
}

type SettingsRepository interface {
	// Get returns ErrNotFound when no settings were saved yet.
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s *models.Settings) error
}

type ActivityFilter struct {
	UserID string
	Action string
	Limit  int64
}

type ActivityRepository interface {
	Create(ctx context.Context, a *models.ActivityLog) error
	List(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, error)
}

// CurrentSettings returns the saved settings, or the defaults when none exist.
func CurrentSettings(ctx context.Context, repo SettingsRepository) (models.Settings, error) {
	s, err := repo.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, err
	}
	return *s, nil
}

// Match reports whether a pickup satisfies the guard.
func (g PickupGuard) Match(p *models.Pickup) bool {
	if g.DriverID != nil && p.DriverID != *g.DriverID {
		return false
	}
	if len(g.Statuses) == 0 {
		return true
	}
	for _, s := range g.Statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}
