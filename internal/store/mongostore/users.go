package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepository struct {
	coll *mongo.Collection
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	result, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"userID": userID})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context, f store.UserFilter) ([]models.User, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
	}

	cursor, err := r.coll.Find(ctx, filter, findOptions(0, "createdAt"))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, userID string, p store.UserPatch) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.AvatarURL != nil {
		set["avatarURL"] = *p.AvatarURL
	}
	if p.Password != nil {
		set["password"] = *p.Password
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Availability != nil {
		set["availability"] = *p.Availability
	}
	if p.Vehicle != nil {
		set["vehicle"] = p.Vehicle
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"userID": userID}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepository) SwapAvailability(ctx context.Context, userID, from, to string) (*models.User, error) {
	filter := bson.M{"userID": userID, "availability": from}
	update := bson.M{"$set": bson.M{"availability": to, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("swap availability of %s: %w", userID, err)
	}
	count, cerr := r.coll.CountDocuments(ctx, bson.M{"userID": userID})
	if cerr != nil {
		return nil, fmt.Errorf("check user %s: %w", userID, cerr)
	}
	if count == 0 {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrConflict
}

func (r *userRepository) Increment(ctx context.Context, userID string, inc store.UserIncrement) error {
	update := bson.M{
		"$inc": bson.M{
			"points":           inc.Points,
			"totalRecycledKg":  inc.TotalRecycledKg,
			"completedPickups": inc.CompletedPickups,
			"earnings":         inc.Earnings,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"userID": userID}, update)
	if err != nil {
		return fmt.Errorf("increment user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"userID": userID})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	groups, err := countBy(ctx, r.coll, "role")
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		out[g.Key] = g.Count
	}
	return out, nil
}

func (r *userRepository) TotalEarnings(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$earnings"}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode earnings: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
