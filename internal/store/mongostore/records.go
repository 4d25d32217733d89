package mongostore

import (
	"context"
	"fmt"

	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type wasteRecordRepository struct {
	coll *mongo.Collection
}

func (r *wasteRecordRepository) Create(ctx context.Context, rec *models.WasteRecord) error {
	result, err := r.coll.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("insert waste record: %w", translate(err))
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid
	}
	return nil
}

func (r *wasteRecordRepository) List(ctx context.Context, f store.WasteFilter) ([]models.WasteRecord, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userID"] = f.UserID
	}
	if f.WasteType != "" {
		filter["wasteType"] = f.WasteType
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		rng := bson.M{}
		if !f.From.IsZero() {
			rng["$gte"] = f.From
		}
		if !f.To.IsZero() {
			rng["$lte"] = f.To
		}
		filter["recordedAt"] = rng
	}

	cursor, err := r.coll.Find(ctx, filter, findOptions(f.Limit, "recordedAt"))
	if err != nil {
		return nil, fmt.Errorf("query waste records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.WasteRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode waste records: %w", err)
	}
	return records, nil
}

func (r *wasteRecordRepository) Totals(ctx context.Context, userID string) ([]models.WasteTotals, error) {
	pipeline := mongo.Pipeline{}
	if userID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"userID": userID}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$wasteType"},
			{Key: "weightKg", Value: bson.D{{Key: "$sum", Value: "$weightKg"}}},
			{Key: "points", Value: bson.D{{Key: "$sum", Value: "$points"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate waste totals: %w", err)
	}
	defer cursor.Close(ctx)

	var totals []models.WasteTotals
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("decode waste totals: %w", err)
	}
	return totals, nil
}

type settingsRepository struct {
	coll *mongo.Collection
}

func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	if err := r.coll.FindOne(ctx, bson.M{"key": models.GlobalSettingsKey}).Decode(&s); err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, s *models.Settings) error {
	s.Key = models.GlobalSettingsKey
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"key": models.GlobalSettingsKey}, s, opts); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

type activityRepository struct {
	coll *mongo.Collection
}

func (r *activityRepository) Create(ctx context.Context, a *models.ActivityLog) error {
	result, err := r.coll.InsertOne(ctx, a)
	if err != nil {
		return fmt.Errorf("insert activity: %w", translate(err))
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		a.ID = oid
	}
	return nil
}

func (r *activityRepository) List(ctx context.Context, f store.ActivityFilter) ([]models.ActivityLog, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userID"] = f.UserID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}

	cursor, err := r.coll.Find(ctx, filter, findOptions(f.Limit, "createdAt"))
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []models.ActivityLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return logs, nil
}
