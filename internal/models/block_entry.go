package models

import "time"

// Block entry sources.
const (
	// BlockSourceDetector marks entries inserted by the anomaly detector.
	BlockSourceDetector = "detector"
	// BlockSourceAdmin marks entries inserted through the admin API.
	BlockSourceAdmin = "admin"
)

// BlockEntry is a deny-list row for a client identity. Expired rows are
// ignored on lookup and pruned by the background sweep.
type BlockEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Identity string `gorm:"type:text;not null;uniqueIndex"` // Resolved client identity key.
	Reason   string `gorm:"type:text;not null"`             // Human-readable block reason.
	Source   string `gorm:"type:text;not null"`             // detector or admin.

	ExpiresAt time.Time `gorm:"not null;index"` // Block expiry timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
