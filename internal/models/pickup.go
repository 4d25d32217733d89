package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PickupStatus is the lifecycle state of a pickup job.
type PickupStatus string

const (
	PickupPending    PickupStatus = "pending"
	PickupAccepted   PickupStatus = "accepted"
	PickupInProgress PickupStatus = "in_progress"
	PickupCompleted  PickupStatus = "completed"
	PickupCancelled  PickupStatus = "cancelled"
)

func (s PickupStatus) Terminal() bool {
	return s == PickupCompleted || s == PickupCancelled
}

func (s PickupStatus) Valid() bool {
	switch s {
	case PickupPending, PickupAccepted, PickupInProgress, PickupCompleted, PickupCancelled:
		return true
	}
	return false
}

type Pickup struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PickupID          string             `bson:"pickupID" json:"pickupID"`
	UserID            string             `bson:"userID" json:"userID"`
	DriverID          string             `bson:"driverID" json:"driverID"` // empty while unassigned
	Address           Address            `bson:"address" json:"address"`
	WasteType         WasteType          `bson:"wasteType" json:"wasteType"`
	EstimatedWeightKg float64            `bson:"estimatedWeightKg" json:"estimatedWeightKg"`
	ActualWeightKg    float64            `bson:"actualWeightKg,omitempty" json:"actualWeightKg,omitempty"`
	ScheduledAt       time.Time          `bson:"scheduledAt" json:"scheduledAt"`
	Notes             string             `bson:"notes,omitempty" json:"notes,omitempty"`
	ImageURL          string             `bson:"imageURL,omitempty" json:"imageURL,omitempty"`
	Status            PickupStatus       `bson:"status" json:"status"`
	PointsAwarded     int64              `bson:"pointsAwarded,omitempty" json:"pointsAwarded,omitempty"`
	DriverEarning     float64            `bson:"driverEarning,omitempty" json:"driverEarning,omitempty"`
	CancelReason      string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
	AcceptedAt        *time.Time         `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	StartedAt         *time.Time         `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt       *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
}
