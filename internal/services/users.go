package services

import (
	"errors"
	"strings"

	"tasktrack/backend/internal/models"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailInUse    = errors.New("email already in use by another account")
	ErrWrongPassword = errors.New("current password is invalid")
)

type ProfileUpdateRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=100"`
	Email string `json:"email" binding:"required,email"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type UserService interface {
	GetUser(db *gorm.DB, id uuid.UUID) (*models.User, error)
	UpdateProfile(db *gorm.DB, id uuid.UUID, req ProfileUpdateRequest) (*models.User, error)
	UpdatePassword(db *gorm.DB, id uuid.UUID, req PasswordChangeRequest) error
}

type UserServiceImpl struct {
	bcryptCost int
}

func NewUserService(bcryptCost int) *UserServiceImpl {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserServiceImpl{bcryptCost: bcryptCost}
}

func (s *UserServiceImpl) GetUser(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserServiceImpl) UpdateProfile(db *gorm.DB, id uuid.UUID, req ProfileUpdateRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var other models.User
	err := db.Where("email = ? AND id <> ?", email, id).First(&other).Error
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(req.Name)
	user.Email = email
	if err := db.Save(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *UserServiceImpl) UpdatePassword(db *gorm.DB, id uuid.UUID, req PasswordChangeRequest) error {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return err
	}

	if !VerifyPassword(user.Password, req.CurrentPassword) {
		return ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return err
	}

	user.Password = string(hashed)
	return db.Save(&user).Error
}
