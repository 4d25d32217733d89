// Package memstore keeps every collection in process memory. It backs the
// "memory" storage driver for local development and the handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	pickups  map[string]*models.Pickup
	records  []models.WasteRecord
	settings *models.Settings
	activity []models.ActivityLog
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   make(map[string]*models.User),
		pickups: make(map[string]*models.Pickup),
	}
}

func (s *Store) Users() store.UserRepository               { return (*userRepository)(s) }
func (s *Store) Pickups() store.PickupRepository           { return (*pickupRepository)(s) }
func (s *Store) WasteRecords() store.WasteRecordRepository { return (*wasteRecordRepository)(s) }
func (s *Store) Settings() store.SettingsRepository        { return (*settingsRepository)(s) }
func (s *Store) Activity() store.ActivityRepository        { return (*activityRepository)(s) }

type userRepository Store

func (r *userRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = strings.ToLower(u.Email)
	if _, ok := r.users[u.UserID]; ok {
		return store.ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *userRepository) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepository) List(_ context.Context, f store.UserFilter) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var out []models.User
	for _, u := range r.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Email, search) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *userRepository) Update(_ context.Context, userID string, p store.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.Availability != nil {
		u.Availability = *p.Availability
	}
	if p.Vehicle != nil {
		v := *p.Vehicle
		u.Vehicle = &v
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *userRepository) SwapAvailability(_ context.Context, userID, from, to string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Availability != from {
		return nil, store.ErrConflict
	}
	u.Availability = to
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *userRepository) Increment(_ context.Context, userID string, inc store.UserIncrement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Points += inc.Points
	u.TotalRecycledKg += inc.TotalRecycledKg
	u.CompletedPickups += inc.CompletedPickups
	u.Earnings += inc.Earnings
	u.UpdatedAt = time.Now()
	return nil
}

func (r *userRepository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

func (r *userRepository) CountByRole(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[string]int64{}
	for _, u := range r.users {
		out[u.Role]++
	}
	return out, nil
}

func (r *userRepository) TotalEarnings(_ context.Context) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, u := range r.users {
		total += u.Earnings
	}
	return total, nil
}

type pickupRepository Store

func (r *pickupRepository) Create(_ context.Context, p *models.Pickup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pickups[p.PickupID]; ok {
		return store.ErrDuplicate
	}
	p.ID = primitive.NewObjectID()
	cp := *p
	r.pickups[p.PickupID] = &cp
	return nil
}

func (r *pickupRepository) GetByID(_ context.Context, pickupID string) (*models.Pickup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pickups[pickupID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *pickupRepository) List(_ context.Context, f store.PickupFilter) ([]models.Pickup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Pickup
	for _, p := range r.pickups {
		if f.UserID != "" && p.UserID != f.UserID {
			continue
		}
		if f.DriverID != "" && p.DriverID != f.DriverID {
			continue
		}
		if f.Unassigned && p.DriverID != "" {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *pickupRepository) Transition(_ context.Context, pickupID string, guard store.PickupGuard, patch store.PickupPatch) (*models.Pickup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pickups[pickupID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !guard.Match(p) {
		return nil, store.ErrConflict
	}

	p.Status = patch.Status
	p.UpdatedAt = patch.UpdatedAt
	if patch.DriverID != nil {
		p.DriverID = *patch.DriverID
	}
	if patch.ActualWeightKg != nil {
		p.ActualWeightKg = *patch.ActualWeightKg
	}
	if patch.PointsAwarded != nil {
		p.PointsAwarded = *patch.PointsAwarded
	}
	if patch.DriverEarning != nil {
		p.DriverEarning = *patch.DriverEarning
	}
	if patch.CancelReason != nil {
		p.CancelReason = *patch.CancelReason
	}
	if patch.AcceptedAt != nil {
		p.AcceptedAt = timePtr(*patch.AcceptedAt)
	}
	if patch.StartedAt != nil {
		p.StartedAt = timePtr(*patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		p.CompletedAt = timePtr(*patch.CompletedAt)
	}
	if patch.CancelledAt != nil {
		p.CancelledAt = timePtr(*patch.CancelledAt)
	}
	if patch.ClearAcceptedAt {
		p.AcceptedAt = nil
	}
	cp := *p
	return &cp, nil
}

func (r *pickupRepository) CountByStatus(_ context.Context) (map[models.PickupStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[models.PickupStatus]int64{}
	for _, p := range r.pickups {
		out[p.Status]++
	}
	return out, nil
}

type wasteRecordRepository Store

func (r *wasteRecordRepository) Create(_ context.Context, rec *models.WasteRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.ID = primitive.NewObjectID()
	r.records = append(r.records, *rec)
	return nil
}

func (r *wasteRecordRepository) List(_ context.Context, f store.WasteFilter) ([]models.WasteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.WasteRecord
	for _, rec := range r.records {
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.WasteType != "" && rec.WasteType != f.WasteType {
			continue
		}
		if !f.From.IsZero() && rec.RecordedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && rec.RecordedAt.After(f.To) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *wasteRecordRepository) Totals(_ context.Context, userID string) ([]models.WasteTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byType := map[models.WasteType]*models.WasteTotals{}
	for _, rec := range r.records {
		if userID != "" && rec.UserID != userID {
			continue
		}
		t, ok := byType[rec.WasteType]
		if !ok {
			t = &models.WasteTotals{WasteType: rec.WasteType}
			byType[rec.WasteType] = t
		}
		t.WeightKg += rec.WeightKg
		t.Points += rec.Points
		t.Count++
	}

	out := make([]models.WasteTotals, 0, len(byType))
	for _, t := range byType {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WasteType < out[j].WasteType })
	return out, nil
}

type settingsRepository Store

func (r *settingsRepository) Get(_ context.Context) (*models.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.settings == nil {
		return nil, store.ErrNotFound
	}
	cp := *r.settings
	cp.Pricing = make(map[models.WasteType]models.Rate, len(r.settings.Pricing))
	for k, v := range r.settings.Pricing {
		cp.Pricing[k] = v
	}
	return &cp, nil
}

func (r *settingsRepository) Save(_ context.Context, s *models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	cp.Key = models.GlobalSettingsKey
	cp.Pricing = make(map[models.WasteType]models.Rate, len(s.Pricing))
	for k, v := range s.Pricing {
		cp.Pricing[k] = v
	}
	r.settings = &cp
	return nil
}

type activityRepository Store

func (r *activityRepository) Create(_ context.Context, a *models.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = primitive.NewObjectID()
	r.activity = append(r.activity, *a)
	return nil
}

func (r *activityRepository) List(_ context.Context, f store.ActivityFilter) ([]models.ActivityLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ActivityLog
	for i := len(r.activity) - 1; i >= 0; i-- {
		a := r.activity[i]
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && int64(len(out)) >= f.Limit {
			break
		}
	}
	return out, nil
}

func timePtr(t time.Time) *time.Time { return &t }
