package services

import (
	"errors"
	"time"

	"tasktrack/backend/internal/config"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenService issues and verifies the bearer tokens that authenticate every
// request. Tokens are stateless HS256 JWTs embedding the user id; there is no
// server-side session and no revocation, a token stays valid until its expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokenService(authConfig config.AuthConfig) *TokenService {
	return &TokenService{
		secret: []byte(authConfig.JWTSecret),
		ttl:    authConfig.TokenTTL,
		issuer: authConfig.Issuer,
	}
}

// Generate signs a token for userID valid from now until now+TTL. Each call
// yields a fresh token; previously issued tokens stay valid on their own
// clocks.
func (s *TokenService) Generate(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":  userID.String(),
		"iss": s.issuer,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies signature, expiry and issuer, and returns the embedded
// user id. The id is an identity claim only; whether the account still
// exists is the caller's problem.
func (s *TokenService) Parse(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, ErrTokenInvalid
	}

	if !token.Valid {
		return uuid.Nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrTokenInvalid
	}

	if iss, _ := claims["iss"].(string); iss != s.issuer {
		return uuid.Nil, ErrTokenInvalid
	}

	idStr, _ := claims["id"].(string)
	userID, err := uuid.FromString(idStr)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}

	return userID, nil
}
