// server/internal/models/common.go
package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Roles
const (
	RoleUser   = "user"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// Account status
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// WasteType is the category a recycling record or pickup belongs to.
type WasteType string

const (
	WastePlastic    WasteType = "plastic"
	WastePaper      WasteType = "paper"
	WasteGlass      WasteType = "glass"
	WasteMetal      WasteType = "metal"
	WasteOrganic    WasteType = "organic"
	WasteElectronic WasteType = "electronic"
)

// WasteTypes lists every supported category, in display order.
var WasteTypes = []WasteType{WastePlastic, WastePaper, WasteGlass, WasteMetal, WasteOrganic, WasteElectronic}

func (w WasteType) Valid() bool {
	for _, t := range WasteTypes {
		if t == w {
			return true
		}
	}
	return false
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleDriver || role == RoleAdmin
}

// Address là một object có cấu trúc để lưu thông tin địa chỉ.
type Address struct {
	FullText  string  `bson:"fullText" json:"fullText"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// NewBusinessID builds a readable id such as "PCK-1A2B3C4D".
func NewBusinessID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.New().String()[:8]))
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
