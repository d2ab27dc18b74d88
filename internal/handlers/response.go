package handlers

import (
	"tasktrack/backend/internal/middleware"
	"tasktrack/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// UserPayload is the safe projection of a user sent to clients. The password
// hash never appears here.
type UserPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func userPayloadFrom(user *models.User) UserPayload {
	return UserPayload{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
	}
}

// currentUserID returns the identity attached by the auth gate. A missing
// identity on a protected route is a wiring bug, reported as a 401 by the
// caller.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
