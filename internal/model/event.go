package model

import (
	"database/sql"
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryAccess  = "access"
	EventCategoryContent = "content"
	EventCategoryUser    = "user"
	EventCategoryConfig  = "config"
	EventCategorySystem  = "system"
	EventCategoryCache   = "cache"
)

// Event represents an audit log entry.
type Event struct {
	ID        int64         `json:"id"`
	Level     string        `json:"level"`
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	UserID    sql.NullInt64 `json:"-"`
	Metadata  string        `json:"metadata"` // JSON string
	CreatedAt time.Time     `json:"created_at"`
}
