package mongostore

import (
	"context"
	"errors"
	"fmt"

	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type pickupRepository struct {
	coll *mongo.Collection
}

func (r *pickupRepository) Create(ctx context.Context, p *models.Pickup) error {
	result, err := r.coll.InsertOne(ctx, p)
	if err != nil {
		return fmt.Errorf("insert pickup: %w", translate(err))
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

func (r *pickupRepository) GetByID(ctx context.Context, pickupID string) (*models.Pickup, error) {
	var p models.Pickup
	if err := r.coll.FindOne(ctx, bson.M{"pickupID": pickupID}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *pickupRepository) List(ctx context.Context, f store.PickupFilter) ([]models.Pickup, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userID"] = f.UserID
	}
	if f.DriverID != "" {
		filter["driverID"] = f.DriverID
	}
	if f.Unassigned {
		filter["driverID"] = ""
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	cursor, err := r.coll.Find(ctx, filter, findOptions(f.Limit, "createdAt"))
	if err != nil {
		return nil, fmt.Errorf("query pickups: %w", err)
	}
	defer cursor.Close(ctx)

	var pickups []models.Pickup
	if err := cursor.All(ctx, &pickups); err != nil {
		return nil, fmt.Errorf("decode pickups: %w", err)
	}
	return pickups, nil
}

// Transition is a compare-and-set: the filter carries the guard, so when two
// drivers race for the same job only one update matches.
func (r *pickupRepository) Transition(ctx context.Context, pickupID string, guard store.PickupGuard, patch store.PickupPatch) (*models.Pickup, error) {
	filter := bson.M{"pickupID": pickupID}
	if len(guard.Statuses) > 0 {
		filter["status"] = bson.M{"$in": guard.Statuses}
	}
	if guard.DriverID != nil {
		filter["driverID"] = *guard.DriverID
	}

	set := bson.M{"status": patch.Status, "updatedAt": patch.UpdatedAt}
	if patch.DriverID != nil {
		set["driverID"] = *patch.DriverID
	}
	if patch.ActualWeightKg != nil {
		set["actualWeightKg"] = *patch.ActualWeightKg
	}
	if patch.PointsAwarded != nil {
		set["pointsAwarded"] = *patch.PointsAwarded
	}
	if patch.DriverEarning != nil {
		set["driverEarning"] = *patch.DriverEarning
	}
	if patch.CancelReason != nil {
		set["cancelReason"] = *patch.CancelReason
	}
	if patch.AcceptedAt != nil {
		set["acceptedAt"] = *patch.AcceptedAt
	}
	if patch.StartedAt != nil {
		set["startedAt"] = *patch.StartedAt
	}
	if patch.CompletedAt != nil {
		set["completedAt"] = *patch.CompletedAt
	}
	if patch.CancelledAt != nil {
		set["cancelledAt"] = *patch.CancelledAt
	}
	update := bson.M{"$set": set}
	if patch.ClearAcceptedAt {
		update["$unset"] = bson.M{"acceptedAt": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Pickup
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("transition pickup %s: %w", pickupID, err)
	}

	// Nothing matched: either the pickup does not exist or someone got there first.
	count, cerr := r.coll.CountDocuments(ctx, bson.M{"pickupID": pickupID})
	if cerr != nil {
		return nil, fmt.Errorf("check pickup %s: %w", pickupID, cerr)
	}
	if count == 0 {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrConflict
}

func (r *pickupRepository) CountByStatus(ctx context.Context) (map[models.PickupStatus]int64, error) {
	groups, err := countBy(ctx, r.coll, "status")
	if err != nil {
		return nil, fmt.Errorf("count pickups by status: %w", err)
	}
	out := make(map[models.PickupStatus]int64, len(groups))
	for _, g := range groups {
		out[models.PickupStatus(g.Key)] = g.Count
	}
	return out, nil
}
