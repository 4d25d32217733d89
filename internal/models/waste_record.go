package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record sources
const (
	SourceSelf   = "self"
	SourcePickup = "pickup"
)

type WasteRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordID   string             `bson:"recordID" json:"recordID"`
	UserID     string             `bson:"userID" json:"userID"`
	WasteType  WasteType          `bson:"wasteType" json:"wasteType"`
	WeightKg   float64            `bson:"weightKg" json:"weightKg"`
	Points     int64              `bson:"points" json:"points"`
	Source     string             `bson:"source" json:"source"`
	PickupID   string             `bson:"pickupID,omitempty" json:"pickupID,omitempty"`
	ImageURL   string             `bson:"imageURL,omitempty" json:"imageURL,omitempty"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	RecordedAt time.Time          `bson:"recordedAt" json:"recordedAt"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// WasteTotals aggregates records of a single waste type.
type WasteTotals struct {
	WasteType WasteType `bson:"_id" json:"wasteType"`
	WeightKg  float64   `bson:"weightKg" json:"weightKg"`
	Points    int64     `bson:"points" json:"points"`
	Count     int64     `bson:"count" json:"count"`
}
