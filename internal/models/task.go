package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Task priorities accepted at the API boundary.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task belongs to exactly one owner. OwnerID is stamped from the
// authenticated identity on create and is immutable afterwards.
type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID     uuid.UUID  `json:"owner" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" gorm:"not null;default:'medium'"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ValidPriority reports whether p is one of the accepted priority levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
