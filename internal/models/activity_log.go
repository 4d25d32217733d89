package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity actions
const (
	ActionRegister        = "user.register"
	ActionLogin           = "user.login"
	ActionProfileUpdate   = "user.profile_update"
	ActionPasswordChange  = "user.password_change"
	ActionAvailability    = "driver.availability"
	ActionWasteLogged     = "waste.logged"
	ActionPickupCreated   = "pickup.created"
	ActionPickupClaimed   = "pickup.claimed"
	ActionPickupStarted   = "pickup.started"
	ActionPickupReleased  = "pickup.released"
	ActionPickupCompleted = "pickup.completed"
	ActionPickupCancelled = "pickup.cancelled"
	ActionPickupAssigned  = "pickup.assigned"
	ActionSettingsUpdated = "settings.updated"
	ActionUserUpdated     = "admin.user_updated"
	ActionUserDeleted     = "admin.user_deleted"
	ActionFleetAssignment = "admin.fleet_assignment"
	ActionFileUploaded    = "upload.file"
)

type ActivityLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID  string             `bson:"activityID" json:"activityID"`
	UserID      string             `bson:"userID" json:"userID"`
	Role        string             `bson:"role" json:"role"`
	Action      string             `bson:"action" json:"action"`
	EntityType  string             `bson:"entityType,omitempty" json:"entityType,omitempty"`
	EntityID    string             `bson:"entityID,omitempty" json:"entityID,omitempty"`
	Description string             `bson:"description" json:"description"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
