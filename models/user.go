package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles. The portal a user logs into is determined by role; role also
// decides which side of a call session initiates.
const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
	RoleAdmin   = "ADMIN"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Role      string             `json:"role" bson:"role"`
	FirstName string             `json:"firstName" bson:"firstName"`
	LastName  string             `json:"lastName" bson:"lastName"`
	Phone     string             `json:"phone" bson:"phone"`
	DateOfBirth string           `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Address     string           `json:"address,omitempty" bson:"address,omitempty"`
	// Doctor-only fields
	Specialization string `json:"specialization,omitempty" bson:"specialization,omitempty"`
	LicenseNumber  string `json:"licenseNumber,omitempty" bson:"licenseNumber,omitempty"`
	Active         bool   `json:"active" bson:"active"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName is the fallback-safe label shown in chat and notifications.
func (u User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	return u.FirstName + " " + u.LastName
}

// Pagination echoes paging parameters back on list responses
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
