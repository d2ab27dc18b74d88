package middleware_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tasktrack/backend/internal/config"
	"tasktrack/backend/internal/middleware"
	"tasktrack/backend/internal/models"
	"tasktrack/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("longenough1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Gate User",
		Email:    "gate@example.com",
		Password: string(hashed),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func gateConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "gate-test-secret",
		TokenTTL:  time.Hour,
		Issuer:    "tasktrack-backend",
	}
}

func setupGate(t *testing.T) (*gin.Engine, *services.TokenService, *gorm.DB, *bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newAuthTestDB(t)
	tokens := services.NewTokenService(gateConfig())

	handlerRan := false
	router := gin.New()
	router.GET("/protected", middleware.RequireAuth(tokens, db), func(c *gin.Context) {
		handlerRan = true
		userID, _ := c.Get(middleware.ContextUserID)
		c.JSON(http.StatusOK, gin.H{"success": true, "id": userID.(uuid.UUID).String()})
	})

	return router, tokens, db, &handlerRan
}

func requestWithHeader(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["success"] != false {
		t.Errorf("Expected success=false envelope, got %v", response["success"])
	}
	code, _ := response["error"].(string)
	return code
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	router, _, _, handlerRan := setupGate(t)

	w := requestWithHeader(router, "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "missing_token" {
		t.Errorf("Expected missing_token, got %s", code)
	}
	if *handlerRan {
		t.Error("Handler must not run without a token")
	}
}

func TestRequireAuth_WrongScheme(t *testing.T) {
	router, tokens, db, handlerRan := setupGate(t)
	user := seedUser(t, db)

	token, err := tokens.Generate(user.ID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	for _, header := range []string{"Basic " + token, token, "bearer " + token} {
		w := requestWithHeader(router, header)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Header %q: expected 401, got %d", header, w.Code)
		}
		if code := errorCode(t, w); code != "invalid_token_format" {
			t.Errorf("Header %q: expected invalid_token_format, got %s", header, code)
		}
	}

	if *handlerRan {
		t.Error("Handler must not run with a malformed header")
	}
}

func TestRequireAuth_BadSignature(t *testing.T) {
	router, _, db, _ := setupGate(t)
	user := seedUser(t, db)

	forgerCfg := gateConfig()
	forgerCfg.JWTSecret = "a-different-secret"
	forger := services.NewTokenService(forgerCfg)

	token, err := forger.Generate(user.ID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	w := requestWithHeader(router, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "invalid_token" {
		t.Errorf("Expected invalid_token, got %s", code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	router, _, db, _ := setupGate(t)
	user := seedUser(t, db)

	expiredCfg := gateConfig()
	expiredCfg.TokenTTL = -time.Hour
	expired := services.NewTokenService(expiredCfg)

	token, err := expired.Generate(user.ID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	w := requestWithHeader(router, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "expired_token" {
		t.Errorf("Expected expired_token, got %s", code)
	}
}

func TestRequireAuth_StaleToken(t *testing.T) {
	router, tokens, db, handlerRan := setupGate(t)
	user := seedUser(t, db)

	token, err := tokens.Generate(user.ID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if err := db.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}

	w := requestWithHeader(router, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for stale token, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "user_not_found" {
		t.Errorf("Expected user_not_found, got %s", code)
	}
	if *handlerRan {
		t.Error("Handler must not run for a deleted account")
	}
}

func TestRequireAuth_ValidTokenAttachesIdentity(t *testing.T) {
	router, tokens, db, handlerRan := setupGate(t)
	user := seedUser(t, db)

	token, err := tokens.Generate(user.ID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	w := requestWithHeader(router, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !*handlerRan {
		t.Fatal("Handler should have run")
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["id"] != user.ID.String() {
		t.Errorf("Expected identity %s, got %v", user.ID, response["id"])
	}
}
