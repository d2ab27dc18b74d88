package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is an account record. The bcrypt hash never leaves the server: the
// json tag strips it from every response body.
type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name     string    `json:"name" gorm:"not null"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:OwnerID"`
}
