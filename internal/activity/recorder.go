// Package activity writes the append-only audit trail of user actions.
package activity

import (
	"context"
	"time"

	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"github.com/rs/zerolog/log"
)

type Recorder struct {
	repo store.ActivityRepository
}

func NewRecorder(repo store.ActivityRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Entry describes one action; EntityType/EntityID point at the record it touched.
type Entry struct {
	Action      string
	EntityType  string
	EntityID    string
	Description string
}

// Record never fails the caller: a lost audit line is logged and dropped.
func (r *Recorder) Record(ctx context.Context, actor models.Actor, e Entry) {
	if r == nil {
		return
	}
	entry := &models.ActivityLog{
		ActivityID:  models.NewBusinessID("ACT"),
		UserID:      actor.UserID,
		Role:        actor.Role,
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Description: e.Description,
		CreatedAt:   time.Now(),
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", e.Action).Str("userID", actor.UserID).Msg("record activity")
	}
}
