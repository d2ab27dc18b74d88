package handlers

import (
	"errors"
	"net/http"

	"tasktrack/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RegisterHandler struct {
	db              *gorm.DB
	registerService services.RegisterService
	tokens          *services.TokenService
}

func NewRegisterHandler(db *gorm.DB, registerService services.RegisterService, tokens *services.TokenService) *RegisterHandler {
	return &RegisterHandler{db: db, registerService: registerService, tokens: tokens}
}

func (h *RegisterHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation_failed",
			"message": "Name, a valid email and a password of at least 8 characters are required.",
		})
		return
	}

	user, err := h.registerService.RegisterUser(h.db, req)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "email_conflict",
				"message": "An account with this email already exists.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "server_error",
			"message": "Server error.",
		})
		return
	}

	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "token_generation_failed",
			"message": "Account created but token issuance failed. Please log in.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   token,
		"user":    userPayloadFrom(user),
	})
}
