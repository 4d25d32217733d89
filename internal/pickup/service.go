package pickup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/rewards"
	"ecotrack-api-server/internal/store"

	"github.com/rs/zerolog/log"
)

type Service struct {
	store    store.Store
	events   events.Publisher
	activity *activity.Recorder
	now      func() time.Time
}

func NewService(st store.Store, pub events.Publisher, rec *activity.Recorder) *Service {
	return &Service{store: st, events: pub, activity: rec, now: time.Now}
}

type CreateInput struct {
	Address           models.Address
	WasteType         models.WasteType
	EstimatedWeightKg float64
	ScheduledAt       time.Time
	Notes             string
	ImageURL          string
}

type ListInput struct {
	// Scope "available" lets drivers browse unassigned pending jobs.
	Scope    string
	Status   models.PickupStatus
	UserID   string
	DriverID string
	Limit    int64
}

const ScopeAvailable = "available"

// Completion is the outcome of a completed pickup.
type Completion struct {
	Pickup *models.Pickup      `json:"pickup"`
	Reward rewards.Reward      `json:"reward"`
	Record *models.WasteRecord `json:"record,omitempty"`
}

// Create books a new pickup request for a user.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Pickup, error) {
	if actor.Role != models.RoleUser {
		return nil, ErrForbidden
	}
	if !in.WasteType.Valid() {
		return nil, fmt.Errorf("%w: unknown waste type %q", ErrInvalidInput, in.WasteType)
	}
	if in.Address.FullText == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if in.EstimatedWeightKg < 0 {
		return nil, fmt.Errorf("%w: estimated weight cannot be negative", ErrInvalidInput)
	}
	if in.EstimatedWeightKg > 0 {
		settings, err := store.CurrentSettings(ctx, s.store.Settings())
		if err != nil {
			return nil, err
		}
		if err := rewards.ValidateWeight(settings, in.EstimatedWeightKg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	now := s.now()
	scheduled := in.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}
	p := &models.Pickup{
		PickupID:          models.NewBusinessID("PCK"),
		UserID:            actor.UserID,
		Address:           in.Address,
		WasteType:         in.WasteType,
		EstimatedWeightKg: in.EstimatedWeightKg,
		ScheduledAt:       scheduled,
		Notes:             in.Notes,
		ImageURL:          in.ImageURL,
		Status:            models.PickupPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Pickups().Create(ctx, p); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, activity.Entry{
		Action:      models.ActionPickupCreated,
		EntityType:  "pickup",
		EntityID:    p.PickupID,
		Description: fmt.Sprintf("Requested %s pickup at %s", p.WasteType, p.Address.FullText),
	})
	events.Emit(ctx, s.events, events.Event{Type: events.PickupCreated, Data: p, UserID: p.UserID})
	return p, nil
}

// List returns the pickups visible to the actor.
func (s *Service) List(ctx context.Context, actor models.Actor, in ListInput) ([]models.Pickup, error) {
	f := store.PickupFilter{Status: in.Status, Limit: in.Limit}
	switch actor.Role {
	case models.RoleAdmin:
		f.UserID = in.UserID
		f.DriverID = in.DriverID
	case models.RoleDriver:
		if in.Scope == ScopeAvailable {
			f.Unassigned = true
			f.Status = models.PickupPending
		} else {
			f.DriverID = actor.UserID
		}
	default:
		f.UserID = actor.UserID
	}
	return s.store.Pickups().List(ctx, f)
}

func (s *Service) Get(ctx context.Context, actor models.Actor, pickupID string) (*models.Pickup, error) {
	p, err := s.store.Pickups().GetByID(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, p) {
		return nil, ErrForbidden
	}
	return p, nil
}

// Claim lets an available driver take an open job. Only one driver can win.
func (s *Service) Claim(ctx context.Context, actor models.Actor, pickupID string) (*models.Pickup, error) {
	if actor.Role != models.RoleDriver {
		return nil, ErrForbidden
	}
	driver, err := s.availableDriver(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, actor, pickupID, driver, models.ActionPickupClaimed)
}

// Assign is the admin path into the accepted state.
func (s *Service) Assign(ctx context.Context, actor models.Actor, pickupID, driverID string) (*models.Pickup, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	driver, err := s.availableDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, actor, pickupID, driver, models.ActionPickupAssigned)
}

func (s *Service) availableDriver(ctx context.Context, driverID string) (*models.User, error) {
	driver, err := s.store.Users().GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: driver %s not found", ErrInvalidInput, driverID)
		}
		return nil, err
	}
	if !driver.IsDriver() {
		return nil, fmt.Errorf("%w: %s is not a driver", ErrInvalidInput, driverID)
	}
	if !driver.IsActive() || driver.Availability != models.DriverAvailable {
		return nil, ErrDriverUnavailable
	}
	return driver, nil
}

func (s *Service) accept(ctx context.Context, actor models.Actor, pickupID string, driver *models.User, action string) (*models.Pickup, error) {
	p, err := s.store.Pickups().GetByID(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, models.PickupAccepted) {
		return nil, ErrInvalidTransition
	}

	// Giữ tài xế trước, một tài xế chỉ có một đơn đang chạy.
	busy, err := s.store.Users().SwapAvailability(ctx, driver.UserID, models.DriverAvailable, models.DriverBusy)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDriverUnavailable
		}
		return nil, err
	}

	now := s.now()
	unassigned := ""
	updated, err := s.transition(ctx, pickupID,
		store.PickupGuard{Statuses: []models.PickupStatus{models.PickupPending}, DriverID: &unassigned},
		store.PickupPatch{
			Status:     models.PickupAccepted,
			DriverID:   &driver.UserID,
			AcceptedAt: &now,
			UpdatedAt:  now,
		})
	if err != nil {
		if _, rerr := s.store.Users().SwapAvailability(ctx, driver.UserID, models.DriverBusy, models.DriverAvailable); rerr != nil {
			log.Error().Err(rerr).Str("driverID", driver.UserID).Str("pickupID", pickupID).Msg("release driver after failed accept")
		}
		return nil, err
	}

	events.Emit(ctx, s.events, events.Event{Type: events.DriverUpdated, Data: busy, DriverID: busy.UserID})
	s.activity.Record(ctx, actor, activity.Entry{
		Action:      action,
		EntityType:  "pickup",
		EntityID:    pickupID,
		Description: fmt.Sprintf("Pickup %s accepted by driver %s", pickupID, driver.UserID),
	})
	s.emitUpdated(ctx, updated)
	return updated, nil
}

// Start marks the driver as on the way / collecting.
func (s *Service) Start(ctx context.Context, actor models.Actor, pickupID string) (*models.Pickup, error) {
	p, err := s.assignedPickup(ctx, actor, pickupID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, models.PickupInProgress) {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	updated, err := s.transition(ctx, pickupID,
		store.PickupGuard{Statuses: []models.PickupStatus{models.PickupAccepted}, DriverID: &actor.UserID},
		store.PickupPatch{Status: models.PickupInProgress, StartedAt: &now, UpdatedAt: now})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, activity.Entry{
		Action:      models.ActionPickupStarted,
		EntityType:  "pickup",
		EntityID:    pickupID,
		Description: fmt.Sprintf("Started pickup %s", pickupID),
	})
	s.emitUpdated(ctx, updated)
	return updated, nil
}

// Release hands an accepted job back to the open pool.
func (s *Service) Release(ctx context.Context, actor models.Actor, pickupID string) (*models.Pickup, error) {
	p, err := s.assignedPickup(ctx, actor, pickupID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, models.PickupPending) {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	unassigned := ""
	updated, err := s.transition(ctx, pickupID,
		store.PickupGuard{Statuses: []models.PickupStatus{models.PickupAccepted}, DriverID: &actor.UserID},
		store.PickupPatch{
			Status:          models.PickupPending,
			DriverID:        &unassigned,
			ClearAcceptedAt: true,
			UpdatedAt:       now,
		})
	if err != nil {
		return nil, err
	}

	s.setAvailability(ctx, actor.UserID, models.DriverAvailable)
	s.activity.Record(ctx, actor, activity.Entry{
		Action:      models.ActionPickupReleased,
		EntityType:  "pickup",
		EntityID:    pickupID,
		Description: fmt.Sprintf("Released pickup %s", pickupID),
	})
	events.Emit(ctx, s.events, events.Event{Type: events.PickupUpdated, Data: updated, UserID: updated.UserID, DriverID: actor.UserID})
	return updated, nil
}

// Complete closes the job with the weighed amount and pays everyone out.
func (s *Service) Complete(ctx context.Context, actor models.Actor, pickupID string, actualWeightKg float64) (*Completion, error) {
	p, err := s.assignedPickup(ctx, actor, pickupID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, models.PickupCompleted) {
		return nil, ErrInvalidTransition
	}

	settings, err := store.CurrentSettings(ctx, s.store.Settings())
	if err != nil {
		return nil, err
	}
	reward, err := rewards.Calculate(settings, p.WasteType, actualWeightKg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	updated, err := s.transition(ctx, pickupID,
		store.PickupGuard{Statuses: []models.PickupStatus{models.PickupInProgress}, DriverID: &actor.UserID},
		store.PickupPatch{
			Status:         models.PickupCompleted,
			ActualWeightKg: &reward.WeightKg,
			PointsAwarded:  &reward.Points,
			DriverEarning:  &reward.DriverEarning,
			CompletedAt:    &now,
			UpdatedAt:      now,
		})
	if err != nil {
		return nil, err
	}

	// From here on the pickup is completed; follow-up failures are logged,
	// not rolled back.
	logger := log.With().Str("pickupID", pickupID).Logger()

	if err := s.store.Users().Increment(ctx, updated.UserID, store.UserIncrement{
		Points:          reward.Points,
		TotalRecycledKg: reward.WeightKg,
	}); err != nil {
		logger.Error().Err(err).Str("userID", updated.UserID).Msg("credit user points")
	}
	if err := s.store.Users().Increment(ctx, actor.UserID, store.UserIncrement{
		TotalRecycledKg:  reward.WeightKg,
		CompletedPickups: 1,
		Earnings:         reward.DriverEarning,
	}); err != nil {
		logger.Error().Err(err).Str("driverID", actor.UserID).Msg("credit driver earnings")
	}
	s.setAvailability(ctx, actor.UserID, models.DriverAvailable)

	record := &models.WasteRecord{
		RecordID:   models.NewBusinessID("WST"),
		UserID:     updated.UserID,
		WasteType:  updated.WasteType,
		WeightKg:   reward.WeightKg,
		Points:     reward.Points,
		Source:     models.SourcePickup,
		PickupID:   pickupID,
		RecordedAt: now,
		CreatedAt:  now,
	}
	if err := s.store.WasteRecords().Create(ctx, record); err != nil {
		logger.Error().Err(err).Msg("create waste record for pickup")
		record = nil
	}

	s.activity.Record(ctx, actor, activity.Entry{
		Action:     models.ActionPickupCompleted,
		EntityType: "pickup",
		EntityID:   pickupID,
		Description: fmt.Sprintf("Completed pickup %s: %.2f kg %s, %d points, earned %.2f",
			pickupID, reward.WeightKg, reward.WasteType, reward.Points, reward.DriverEarning),
	})
	s.emitUpdated(ctx, updated)
	if record != nil {
		events.Emit(ctx, s.events, events.Event{Type: events.WasteLogged, Data: record, UserID: record.UserID})
	}

	return &Completion{Pickup: updated, Reward: reward, Record: record}, nil
}

// Cancel is open to the requesting user and to admins, before collection starts.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, pickupID, reason string) (*models.Pickup, error) {
	p, err := s.store.Pickups().GetByID(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin():
	case actor.Role == models.RoleUser && p.UserID == actor.UserID:
	default:
		return nil, ErrForbidden
	}
	if !CanTransition(p.Status, models.PickupCancelled) {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	updated, err := s.transition(ctx, pickupID,
		store.PickupGuard{Statuses: sourcesOf(models.PickupCancelled)},
		store.PickupPatch{
			Status:       models.PickupCancelled,
			CancelReason: &reason,
			CancelledAt:  &now,
			UpdatedAt:    now,
		})
	if err != nil {
		return nil, err
	}

	if updated.DriverID != "" {
		s.setAvailability(ctx, updated.DriverID, models.DriverAvailable)
	}
	s.activity.Record(ctx, actor, activity.Entry{
		Action:      models.ActionPickupCancelled,
		EntityType:  "pickup",
		EntityID:    pickupID,
		Description: fmt.Sprintf("Cancelled pickup %s", pickupID),
	})
	s.emitUpdated(ctx, updated)
	return updated, nil
}

// assignedPickup loads a pickup the acting driver is assigned to.
func (s *Service) assignedPickup(ctx context.Context, actor models.Actor, pickupID string) (*models.Pickup, error) {
	if actor.Role != models.RoleDriver {
		return nil, ErrForbidden
	}
	p, err := s.store.Pickups().GetByID(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if p.DriverID != actor.UserID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) transition(ctx context.Context, pickupID string, guard store.PickupGuard, patch store.PickupPatch) (*models.Pickup, error) {
	p, err := s.store.Pickups().Transition(ctx, pickupID, guard, patch)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyTaken
	}
	return p, err
}

func (s *Service) setAvailability(ctx context.Context, driverID, availability string) {
	driver, err := s.store.Users().Update(ctx, driverID, store.UserPatch{Availability: &availability})
	if err != nil {
		log.Error().Err(err).Str("driverID", driverID).Str("availability", availability).Msg("update driver availability")
		return
	}
	events.Emit(ctx, s.events, events.Event{Type: events.DriverUpdated, Data: driver, DriverID: driverID})
}

func (s *Service) emitUpdated(ctx context.Context, p *models.Pickup) {
	events.Emit(ctx, s.events, events.Event{Type: events.PickupUpdated, Data: p, UserID: p.UserID, DriverID: p.DriverID})
}
