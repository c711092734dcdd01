package models

import "time"

// Subscription tier names stored on users.
const (
	TierAnonymous  = "anonymous"
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;uniqueIndex"`          // Email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Tier string `gorm:"type:text;not null;default:free"` // Subscription tier name.

	Active  bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	IsAdmin bool `gorm:"not null;default:false"` // Grants access to the admin API.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
