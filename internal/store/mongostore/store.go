package mongostore

import (
	"context"
	"errors"
	"fmt"

	"ecotrack-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	UsersCollection        = "users"
	PickupsCollection      = "pickups"
	WasteRecordsCollection = "waste_records"
	SettingsCollection     = "settings"
	ActivityCollection     = "activity_logs"
)

// Store is the MongoDB implementation of store.Store.
type Store struct {
	users    *userRepository
	pickups  *pickupRepository
	waste    *wasteRecordRepository
	settings *settingsRepository
	activity *activityRepository
}

var _ store.Store = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{
		users:    &userRepository{coll: db.Collection(UsersCollection)},
		pickups:  &pickupRepository{coll: db.Collection(PickupsCollection)},
		waste:    &wasteRecordRepository{coll: db.Collection(WasteRecordsCollection)},
		settings: &settingsRepository{coll: db.Collection(SettingsCollection)},
		activity: &activityRepository{coll: db.Collection(ActivityCollection)},
	}
}

func (s *Store) Users() store.UserRepository               { return s.users }
func (s *Store) Pickups() store.PickupRepository           { return s.pickups }
func (s *Store) WasteRecords() store.WasteRecordRepository { return s.waste }
func (s *Store) Settings() store.SettingsRepository        { return s.settings }
func (s *Store) Activity() store.ActivityRepository        { return s.activity }

// EnsureIndexes creates the indexes every query in this package relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "userID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}},
		},
		PickupsCollection: {
			{Keys: bson.D{{Key: "pickupID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userID", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "driverID", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		WasteRecordsCollection: {
			{Keys: bson.D{{Key: "recordID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userID", Value: 1}, {Key: "recordedAt", Value: -1}}},
		},
		SettingsCollection: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ActivityCollection: {
			{Keys: bson.D{{Key: "userID", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "action", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func findOptions(limit int64, sortField string) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func countBy(ctx context.Context, coll *mongo.Collection, field string) ([]groupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []groupCount
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
