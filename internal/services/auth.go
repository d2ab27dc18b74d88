package services

import (
	"errors"
	"strings"

	"tasktrack/backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials covers both unknown email and wrong password so the
// two cases are indistinguishable to a caller probing for accounts.
var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
}

type AuthServiceImpl struct {
	bcryptCost int
}

func NewAuthService(bcryptCost int) *AuthServiceImpl {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{bcryptCost: bcryptCost}
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func (s *AuthServiceImpl) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}
