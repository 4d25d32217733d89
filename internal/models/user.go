package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Driver availability
const (
	DriverAvailable = "available"
	DriverBusy      = "busy"
	DriverOffline   = "offline"
)

// DriverVehicle is the fleet assignment an admin gives a driver.
type DriverVehicle struct {
	PlateNumber string  `bson:"plateNumber" json:"plateNumber"`
	Type        string  `bson:"type" json:"type"`             // TRUCK, VAN, MOTORBIKE
	CapacityKg  float64 `bson:"capacityKg" json:"capacityKg"` // payload in kilograms
	Zone        string  `bson:"zone" json:"zone"`             // collection area the driver covers
}

// User struct matches the document in MongoDB
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           string             `bson:"userID" json:"userID"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	Role             string             `bson:"role" json:"role"`
	Status           string             `bson:"status" json:"status"`
	Phone            string             `bson:"phone,omitempty" json:"phone"`
	Address          string             `bson:"address,omitempty" json:"address"`
	AvatarURL        string             `bson:"avatarURL,omitempty" json:"avatarURL"`
	Points           int64              `bson:"points" json:"points"`
	TotalRecycledKg  float64            `bson:"totalRecycledKg" json:"totalRecycledKg"`
	CompletedPickups int64              `bson:"completedPickups" json:"completedPickups"`
	Earnings         float64            `bson:"earnings" json:"earnings"`
	Availability     string             `bson:"availability,omitempty" json:"availability,omitempty"` // drivers only
	Vehicle          *DriverVehicle     `bson:"vehicle,omitempty" json:"vehicle,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsDriver() bool { return u.Role == RoleDriver }

func (u *User) IsActive() bool { return u.Status == StatusActive }
