package pickup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"
	"ecotrack-api-server/internal/store/memstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	ctx    context.Context
	st     *memstore.Store
	pub    *recordingPublisher
	svc    *Service
	user   models.Actor
	driver models.Actor
	admin  models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	pub := &recordingPublisher{}
	f := &fixture{
		ctx: context.Background(),
		st:  st,
		pub: pub,
		svc: NewService(st, pub, activity.NewRecorder(st.Activity())),
	}
	f.user = f.addUser(t, models.RoleUser, "")
	f.driver = f.addUser(t, models.RoleDriver, models.DriverAvailable)
	f.admin = f.addUser(t, models.RoleAdmin, "")
	return f
}

func (f *fixture) addUser(t *testing.T, role, availability string) models.Actor {
	t.Helper()
	id := models.NewBusinessID("USR")
	u := &models.User{
		UserID:       id,
		Name:         role,
		Email:        id + "@test.local",
		Role:         role,
		Status:       models.StatusActive,
		Availability: availability,
	}
	require.NoError(t, f.st.Users().Create(f.ctx, u))
	return models.Actor{UserID: id, Role: role}
}

func (f *fixture) getUser(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.st.Users().GetByID(f.ctx, id)
	require.NoError(t, err)
	return u
}

func (f *fixture) createPickup(t *testing.T) *models.Pickup {
	t.Helper()
	p, err := f.svc.Create(f.ctx, f.user, CreateInput{
		Address:           models.Address{FullText: "12 Green St"},
		WasteType:         models.WastePlastic,
		EstimatedWeightKg: 10,
	})
	require.NoError(t, err)
	return p
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	p := f.createPickup(t)
	assert.Equal(t, models.PickupPending, p.Status)
	assert.Equal(t, f.user.UserID, p.UserID)
	assert.Empty(t, p.DriverID)
	assert.False(t, p.ScheduledAt.IsZero())
	assert.Equal(t, []string{events.PickupCreated}, f.pub.types())

	stored, err := f.st.Pickups().GetByID(f.ctx, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, p.PickupID, stored.PickupID)
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	valid := CreateInput{Address: models.Address{FullText: "x"}, WasteType: models.WastePaper}

	_, err := f.svc.Create(f.ctx, f.driver, valid)
	assert.ErrorIs(t, err, ErrForbidden)

	in := valid
	in.WasteType = "wood"
	_, err = f.svc.Create(f.ctx, f.user, in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = valid
	in.Address = models.Address{}
	_, err = f.svc.Create(f.ctx, f.user, in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = valid
	in.EstimatedWeightKg = 501
	_, err = f.svc.Create(f.ctx, f.user, in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = valid
	in.EstimatedWeightKg = -1
	_, err = f.svc.Create(f.ctx, f.user, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)

	claimed, err := f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupAccepted, claimed.Status)
	assert.Equal(t, f.driver.UserID, claimed.DriverID)
	require.NotNil(t, claimed.AcceptedAt)
	assert.Equal(t, models.DriverBusy, f.getUser(t, f.driver.UserID).Availability)

	started, err := f.svc.Start(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	f.pub.reset()
	result, err := f.svc.Complete(f.ctx, f.driver, p.PickupID, 12.5)
	require.NoError(t, err)

	done := result.Pickup
	assert.Equal(t, models.PickupCompleted, done.Status)
	assert.Equal(t, 12.5, done.ActualWeightKg)
	assert.Equal(t, int64(125), done.PointsAwarded)
	assert.InDelta(t, 8.25, done.DriverEarning, 1e-9)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, int64(125), result.Reward.Points)

	user := f.getUser(t, f.user.UserID)
	assert.Equal(t, int64(125), user.Points)
	assert.Equal(t, 12.5, user.TotalRecycledKg)

	driver := f.getUser(t, f.driver.UserID)
	assert.InDelta(t, 8.25, driver.Earnings, 1e-9)
	assert.Equal(t, int64(1), driver.CompletedPickups)
	assert.Equal(t, 12.5, driver.TotalRecycledKg)
	assert.Equal(t, models.DriverAvailable, driver.Availability)

	records, err := f.st.WasteRecords().List(f.ctx, store.WasteFilter{UserID: f.user.UserID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.SourcePickup, records[0].Source)
	assert.Equal(t, p.PickupID, records[0].PickupID)
	assert.Equal(t, int64(125), records[0].Points)
	require.NotNil(t, result.Record)
	assert.Equal(t, records[0].RecordID, result.Record.RecordID)

	assert.Contains(t, f.pub.types(), events.PickupUpdated)
	assert.Contains(t, f.pub.types(), events.WasteLogged)
	assert.Contains(t, f.pub.types(), events.DriverUpdated)

	logs, err := f.st.Activity().List(f.ctx, store.ActivityFilter{Action: models.ActionPickupCompleted})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// completed is terminal
	_, err = f.svc.Cancel(f.ctx, f.admin, p.PickupID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClaimRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)

	const drivers = 10
	actors := make([]models.Actor, drivers)
	for i := range actors {
		actors[i] = f.addUser(t, models.RoleDriver, models.DriverAvailable)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for _, a := range actors {
		wg.Add(1)
		go func(a models.Actor) {
			defer wg.Done()
			_, err := f.svc.Claim(f.ctx, a, p.PickupID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, a.UserID)
			case errors.Is(err, ErrAlreadyTaken), errors.Is(err, ErrInvalidTransition):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(a)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, drivers-1, losers)

	stored, err := f.st.Pickups().GetByID(f.ctx, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.DriverID)

	for _, a := range actors {
		want := models.DriverAvailable
		if a.UserID == winners[0] {
			want = models.DriverBusy
		}
		assert.Equal(t, want, f.getUser(t, a.UserID).Availability)
	}
}

// slowUsers delays lookups so concurrent claims all pass the availability
// read before any of them reserves the driver.
type slowUsers struct {
	store.UserRepository
}

func (u slowUsers) GetByID(ctx context.Context, userID string) (*models.User, error) {
	time.Sleep(20 * time.Millisecond)
	return u.UserRepository.GetByID(ctx, userID)
}

type slowStore struct {
	*memstore.Store
}

func (s slowStore) Users() store.UserRepository { return slowUsers{s.Store.Users()} }

func TestDriverHoldsOneJobAtATime(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(slowStore{f.st}, f.pub, activity.NewRecorder(f.st.Activity()))
	first := f.createPickup(t)
	second := f.createPickup(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.PickupID, second.PickupID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Claim(f.ctx, f.driver, id)
		}(i, id)
	}
	wg.Wait()

	var won, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrDriverUnavailable):
			refused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, refused)

	assigned, err := f.st.Pickups().List(f.ctx, store.PickupFilter{DriverID: f.driver.UserID})
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
	assert.Equal(t, models.DriverBusy, f.getUser(t, f.driver.UserID).Availability)
}

func TestLostClaimFreesDriver(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)
	rival := f.addUser(t, models.RoleDriver, models.DriverAvailable)

	_, err := f.svc.Claim(f.ctx, rival, p.PickupID)
	require.NoError(t, err)

	_, err = f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyTaken) || errors.Is(err, ErrInvalidTransition), err)
	assert.Equal(t, models.DriverAvailable, f.getUser(t, f.driver.UserID).Availability)
}

func TestClaimRequiresAvailableDriver(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)

	offline := f.addUser(t, models.RoleDriver, models.DriverOffline)
	_, err := f.svc.Claim(f.ctx, offline, p.PickupID)
	assert.ErrorIs(t, err, ErrDriverUnavailable)

	suspended := f.addUser(t, models.RoleDriver, models.DriverAvailable)
	status := models.StatusSuspended
	_, err = f.st.Users().Update(f.ctx, suspended.UserID, store.UserPatch{Status: &status})
	require.NoError(t, err)
	_, err = f.svc.Claim(f.ctx, suspended, p.PickupID)
	assert.ErrorIs(t, err, ErrDriverUnavailable)

	_, err = f.svc.Claim(f.ctx, f.user, p.PickupID)
	assert.ErrorIs(t, err, ErrForbidden)

	// a busy driver cannot take a second job
	_, err = f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)
	second := f.createPickup(t)
	_, err = f.svc.Claim(f.ctx, f.driver, second.PickupID)
	assert.ErrorIs(t, err, ErrDriverUnavailable)
}

func TestClaimUnknownPickup(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Claim(f.ctx, f.driver, "PCK-MISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOnlyAssignedDriverMovesJob(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)
	other := f.addUser(t, models.RoleDriver, models.DriverAvailable)

	_, err := f.svc.Start(f.ctx, f.driver, p.PickupID)
	assert.ErrorIs(t, err, ErrForbidden, "nobody assigned yet")

	_, err = f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)

	_, err = f.svc.Start(f.ctx, other, p.PickupID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Release(f.ctx, other, p.PickupID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Complete(f.ctx, other, p.PickupID, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	// accepted -> completed skips in_progress
	_, err = f.svc.Complete(f.ctx, f.driver, p.PickupID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRelease(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)

	_, err := f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)

	released, err := f.svc.Release(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupPending, released.Status)
	assert.Empty(t, released.DriverID)
	assert.Nil(t, released.AcceptedAt)
	assert.Equal(t, models.DriverAvailable, f.getUser(t, f.driver.UserID).Availability)

	other := f.addUser(t, models.RoleDriver, models.DriverAvailable)
	reclaimed, err := f.svc.Claim(f.ctx, other, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, other.UserID, reclaimed.DriverID)

	// in_progress cannot be released
	_, err = f.svc.Start(f.ctx, other, p.PickupID)
	require.NoError(t, err)
	_, err = f.svc.Release(f.ctx, other, p.PickupID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRejectsBadWeight(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)
	_, err := f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)
	_, err = f.svc.Start(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)

	for _, w := range []float64{0, -2, 500.5} {
		_, err = f.svc.Complete(f.ctx, f.driver, p.PickupID, w)
		assert.ErrorIs(t, err, ErrInvalidInput, "weight %v", w)
	}

	stored, err := f.st.Pickups().GetByID(f.ctx, p.PickupID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupInProgress, stored.Status)
	assert.Equal(t, int64(0), f.getUser(t, f.user.UserID).Points)
}

func TestCompleteUsesSavedPricing(t *testing.T) {
	f := newFixture(t)
	settings := models.DefaultSettings()
	settings.Pricing[models.WastePlastic] = models.Rate{PointsPerKg: 100, DriverRatePerKg: 1}
	settings.PickupBaseFee = 0
	require.NoError(t, f.st.Settings().Save(f.ctx, &settings))

	p := f.createPickup(t)
	_, err := f.svc.Claim(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)
	_, err = f.svc.Start(f.ctx, f.driver, p.PickupID)
	require.NoError(t, err)

	result, err := f.svc.Complete(f.ctx, f.driver, p.PickupID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.Reward.Points)
	assert.InDelta(t, 2.0, result.Reward.DriverEarning, 1e-9)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	t.Run("owner cancels pending", func(t *testing.T) {
		p := f.createPickup(t)
		cancelled, err := f.svc.Cancel(f.ctx, f.user, p.PickupID, "changed my mind")
		require.NoError(t, err)
		assert.Equal(t, models.PickupCancelled, cancelled.Status)
		assert.Equal(t, "changed my mind", cancelled.CancelReason)
		require.NotNil(t, cancelled.CancelledAt)
	})

	t.Run("cancelling accepted job frees the driver", func(t *testing.T) {
		p := f.createPickup(t)
		_, err := f.svc.Claim(f.ctx, f.driver, p.PickupID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(f.ctx, f.admin, p.PickupID, "")
		require.NoError(t, err)
		assert.Equal(t, models.DriverAvailable, f.getUser(t, f.driver.UserID).Availability)
	})

	t.Run("not after collection started", func(t *testing.T) {
		p := f.createPickup(t)
		_, err := f.svc.Claim(f.ctx, f.driver, p.PickupID)
		require.NoError(t, err)
		_, err = f.svc.Start(f.ctx, f.driver, p.PickupID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(f.ctx, f.user, p.PickupID, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("others are forbidden", func(t *testing.T) {
		p := f.createPickup(t)
		stranger := f.addUser(t, models.RoleUser, "")

		_, err := f.svc.Cancel(f.ctx, stranger, p.PickupID, "")
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.Cancel(f.ctx, f.driver, p.PickupID, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		p := f.createPickup(t)
		_, err := f.svc.Cancel(f.ctx, f.user, p.PickupID, "")
		require.NoError(t, err)

		_, err = f.svc.Claim(f.ctx, f.addUser(t, models.RoleDriver, models.DriverAvailable), p.PickupID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = f.svc.Cancel(f.ctx, f.user, p.PickupID, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	p := f.createPickup(t)

	_, err := f.svc.Assign(f.ctx, f.user, p.PickupID, f.driver.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Assign(f.ctx, f.admin, p.PickupID, f.user.UserID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Assign(f.ctx, f.admin, p.PickupID, "USR-NOBODY")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assigned, err := f.svc.Assign(f.ctx, f.admin, p.PickupID, f.driver.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupAccepted, assigned.Status)
	assert.Equal(t, f.driver.UserID, assigned.DriverID)
	assert.Equal(t, models.DriverBusy, f.getUser(t, f.driver.UserID).Availability)

	logs, err := f.st.Activity().List(f.ctx, store.ActivityFilter{UserID: f.admin.UserID})
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.ActionPickupAssigned, logs[0].Action)
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	mine := f.createPickup(t)
	open := f.createPickup(t)

	otherUser := f.addUser(t, models.RoleUser, "")
	_, err := f.svc.Claim(f.ctx, f.driver, mine.PickupID)
	require.NoError(t, err)

	list, err := f.svc.List(f.ctx, f.user, ListInput{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.List(f.ctx, otherUser, ListInput{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.List(f.ctx, f.driver, ListInput{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.PickupID, list[0].PickupID)

	other := f.addUser(t, models.RoleDriver, models.DriverAvailable)
	list, err = f.svc.List(f.ctx, other, ListInput{Scope: ScopeAvailable})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.PickupID, list[0].PickupID)

	list, err = f.svc.List(f.ctx, f.admin, ListInput{Status: models.PickupAccepted})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.Get(f.ctx, other, open.PickupID)
	assert.NoError(t, err)
	_, err = f.svc.Get(f.ctx, other, mine.PickupID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(f.ctx, otherUser, open.PickupID)
	assert.ErrorIs(t, err, ErrForbidden)
}
