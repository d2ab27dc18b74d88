package handlers

import (
	"errors"
	"net/http"

	"tasktrack/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	db          *gorm.DB
	userService services.UserService
}

func NewUserHandler(db *gorm.DB, userService services.UserService) *UserHandler {
	return &UserHandler{db: db, userService: userService}
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthenticated",
			"message": "User not authenticated.",
		})
		return
	}

	user, err := h.userService.GetUser(h.db, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "user_not_found",
				"message": "User not found.",
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userPayloadFrom(user),
	})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthenticated",
			"message": "User not authenticated.",
		})
		return
	}

	var req services.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation_failed",
			"message": "Valid name and email required.",
		})
		return
	}

	user, err := h.userService.UpdateProfile(h.db, userID, req)
	if err != nil {
		if errors.Is(err, services.ErrEmailInUse) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "email_conflict",
				"message": "Email already in use by another account.",
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userPayloadFrom(user),
	})
}

func (h *UserHandler) UpdatePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthenticated",
			"message": "User not authenticated.",
		})
		return
	}

	var req services.PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation_failed",
			"message": "Password invalid or too short.",
		})
		return
	}

	if err := h.userService.UpdatePassword(h.db, userID, req); err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid_credentials",
				"message": "Current password is invalid.",
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password changed.",
	})
}
