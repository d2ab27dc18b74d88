package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tasktrack/backend/internal/handlers"
	"tasktrack/backend/internal/middleware"
	"tasktrack/backend/internal/models"
	"tasktrack/backend/internal/services"
	"tasktrack/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type MockTaskService struct {
	shouldReturnError bool
	returnNotFound    bool
	tasks             []models.Task
	lastCreated       *models.Task
	lastUpdate        *services.TaskUpdate
	stats             services.TaskStats
}

func (m *MockTaskService) CreateTask(db *gorm.DB, task models.Task) error {
	if m.shouldReturnError {
		return gorm.ErrInvalidData
	}
	m.lastCreated = &task
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *MockTaskService) GetTask(db *gorm.DB, ownerID, id uuid.UUID) (models.Task, error) {
	if m.shouldReturnError {
		return models.Task{}, gorm.ErrInvalidData
	}
	if m.returnNotFound {
		return models.Task{}, gorm.ErrRecordNotFound
	}

	for _, task := range m.tasks {
		if task.ID == id && task.OwnerID == ownerID {
			return task, nil
		}
	}
	return models.Task{ID: id, OwnerID: ownerID, Title: "Test Task", Priority: models.PriorityMedium}, nil
}

func (m *MockTaskService) ListTasks(db *gorm.DB, ownerID uuid.UUID) ([]models.Task, error) {
	if m.shouldReturnError {
		return nil, gorm.ErrInvalidData
	}
	owned := []models.Task{}
	for _, task := range m.tasks {
		if task.OwnerID == ownerID {
			owned = append(owned, task)
		}
	}
	return owned, nil
}

func (m *MockTaskService) UpdateTask(db *gorm.DB, ownerID, id uuid.UUID, updates services.TaskUpdate) (models.Task, error) {
	if m.shouldReturnError {
		return models.Task{}, gorm.ErrInvalidData
	}
	if m.returnNotFound {
		return models.Task{}, gorm.ErrRecordNotFound
	}
	m.lastUpdate = &updates

	task := models.Task{ID: id, OwnerID: ownerID, Title: "Test Task", Priority: models.PriorityMedium}
	if updates.Title != nil {
		task.Title = *updates.Title
	}
	if updates.Completed != nil {
		task.Completed = *updates.Completed
	}
	return task, nil
}

func (m *MockTaskService) DeleteTask(db *gorm.DB, ownerID, id uuid.UUID) error {
	if m.shouldReturnError {
		return gorm.ErrInvalidData
	}
	if m.returnNotFound {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (m *MockTaskService) GetStats(db *gorm.DB, ownerID uuid.UUID) (services.TaskStats, error) {
	if m.shouldReturnError {
		return services.TaskStats{}, gorm.ErrInvalidData
	}
	return m.stats, nil
}

func setupTaskHandler() (*MockTaskService, *gin.Engine, uuid.UUID) {
	gin.SetMode(gin.TestMode)
	mockService := &MockTaskService{}
	handler := handlers.NewTaskHandler(nil, mockService, nil)
	identity := uuid.Must(uuid.NewV4())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, identity)
		c.Next()
	})

	router.POST("/tasks", handler.CreateTask)
	router.GET("/tasks", handler.GetTasks)
	router.GET("/tasks/stats", handler.GetStats)
	router.GET("/tasks/:id", handler.GetTaskByID)
	router.PUT("/tasks/:id", handler.UpdateTask)
	router.DELETE("/tasks/:id", handler.DeleteTask)

	return mockService, router, identity
}

func performJSON(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return response
}

func TestCreateTask(t *testing.T) {
	mockService, router, identity := setupTaskHandler()

	body := []byte(`{"title": "Test Task", "description": "Test Description"}`)
	w := performJSON(router, "POST", "/tasks", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}

	response := decodeEnvelope(t, w)
	if response["success"] != true {
		t.Error("Expected success envelope")
	}

	if mockService.lastCreated == nil {
		t.Fatal("Expected task to reach the service")
	}
	if mockService.lastCreated.OwnerID != identity {
		t.Errorf("Expected owner %s from identity, got %s", identity, mockService.lastCreated.OwnerID)
	}
	if mockService.lastCreated.Priority != models.PriorityMedium {
		t.Errorf("Expected default priority medium, got %s", mockService.lastCreated.Priority)
	}
	if mockService.lastCreated.Completed {
		t.Error("Expected new task to default to incomplete")
	}
}

func TestCreateTask_IgnoresBodyOwner(t *testing.T) {
	mockService, router, identity := setupTaskHandler()

	forged := uuid.Must(uuid.NewV4())
	body := []byte(`{"title": "Test Task", "owner": "` + forged.String() + `"}`)
	w := performJSON(router, "POST", "/tasks", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}

	if mockService.lastCreated.OwnerID != identity {
		t.Errorf("Owner taken from body instead of identity: %s", mockService.lastCreated.OwnerID)
	}
}

func TestCreateTask_QueueDownStillCreates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	mockService := &MockTaskService{}
	handler := handlers.NewTaskHandler(nil, mockService, worker.NewJobQueue(client))
	identity := uuid.Must(uuid.NewV4())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, identity)
		c.Next()
	})
	router.POST("/tasks", handler.CreateTask)

	// A due date makes the handler schedule a reminder; a dead queue must
	// not fail the creation.
	body := []byte(`{"title": "Test Task", "due_date": "2030-01-01T10:00:00Z"}`)
	w := performJSON(router, "POST", "/tasks", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d with queue down, got %d", http.StatusCreated, w.Code)
	}
	if mockService.lastCreated == nil {
		t.Fatal("Expected task to be created despite queue outage")
	}
}

func TestCreateTask_InvalidJSON(t *testing.T) {
	_, router, _ := setupTaskHandler()

	w := performJSON(router, "POST", "/tasks", []byte("invalid json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	response := decodeEnvelope(t, w)
	if response["error"] != "validation_failed" {
		t.Errorf("Expected validation_failed, got %v", response["error"])
	}
}

func TestCreateTask_MissingTitle(t *testing.T) {
	_, router, _ := setupTaskHandler()

	w := performJSON(router, "POST", "/tasks", []byte(`{"description": "no title"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTask_NonBooleanCompleted(t *testing.T) {
	_, router, _ := setupTaskHandler()

	w := performJSON(router, "POST", "/tasks", []byte(`{"title": "Test", "completed": "yes"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for non-boolean completed, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTask_InvalidPriority(t *testing.T) {
	_, router, _ := setupTaskHandler()

	w := performJSON(router, "POST", "/tasks", []byte(`{"title": "Test", "priority": "urgent"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for invalid priority, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestGetTaskByID(t *testing.T) {
	_, router, _ := setupTaskHandler()

	taskID := uuid.Must(uuid.NewV4())
	w := performJSON(router, "GET", "/tasks/"+taskID.String(), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeEnvelope(t, w)
	task, ok := response["task"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected task object, got %v", response["task"])
	}
	if task["title"] != "Test Task" {
		t.Errorf("Expected title 'Test Task', got %v", task["title"])
	}
}

func TestGetTaskByID_NotFound(t *testing.T) {
	mockService, router, _ := setupTaskHandler()
	mockService.returnNotFound = true

	taskID := uuid.Must(uuid.NewV4())
	w := performJSON(router, "GET", "/tasks/"+taskID.String(), nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	response := decodeEnvelope(t, w)
	if response["success"] != false || response["error"] != "not_found" {
		t.Errorf("Unexpected not-found envelope: %v", response)
	}
}

func TestGetTaskByID_MalformedID(t *testing.T) {
	_, router, _ := setupTaskHandler()

	w := performJSON(router, "GET", "/tasks/not-a-uuid", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d for malformed id, got %d", http.StatusNotFound, w.Code)
	}
}

func TestGetTasks_EmptyList(t *testing.T) {
	_, router, _ := setupTaskHandler()

	w := performJSON(router, "GET", "/tasks", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeEnvelope(t, w)
	tasks, ok := response["tasks"].([]interface{})
	if !ok {
		t.Fatalf("Expected tasks array, got %v", response["tasks"])
	}
	if len(tasks) != 0 {
		t.Errorf("Expected empty list, got %d tasks", len(tasks))
	}
}

func TestGetTasks_ReturnsOwnedTasks(t *testing.T) {
	mockService, router, identity := setupTaskHandler()

	mockService.tasks = []models.Task{
		{ID: uuid.Must(uuid.NewV4()), OwnerID: identity, Title: "mine"},
		{ID: uuid.Must(uuid.NewV4()), OwnerID: uuid.Must(uuid.NewV4()), Title: "foreign"},
	}

	w := performJSON(router, "GET", "/tasks", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeEnvelope(t, w)
	tasks := response["tasks"].([]interface{})
	if len(tasks) != 1 {
		t.Errorf("Expected 1 owned task, got %d", len(tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	mockService, router, _ := setupTaskHandler()

	taskID := uuid.Must(uuid.NewV4())
	body := []byte(`{"title": "Updated Task", "completed": true}`)
	w := performJSON(router, "PUT", "/tasks/"+taskID.String(), body)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if mockService.lastUpdate == nil {
		t.Fatal("Expected update to reach the service")
	}
	if mockService.lastUpdate.Title == nil || *mockService.lastUpdate.Title != "Updated Task" {
		t.Error("Title update not forwarded")
	}
	if mockService.lastUpdate.Completed == nil || !*mockService.lastUpdate.Completed {
		t.Error("Completed update not forwarded")
	}
}

func TestUpdateTask_RejectsOwnerChange(t *testing.T) {
	mockService, router, _ := setupTaskHandler()

	taskID := uuid.Must(uuid.NewV4())
	body := []byte(`{"title": "Updated", "owner": "` + uuid.Must(uuid.NewV4()).String() + `"}`)
	w := performJSON(router, "PUT", "/tasks/"+taskID.String(), body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	response := decodeEnvelope(t, w)
	if response["error"] != "validation_failed" {
		t.Errorf("Expected validation_failed, got %v", response["error"])
	}
	if response["message"] != "Task owner cannot be changed." {
		t.Errorf("Unexpected message: %v", response["message"])
	}

	if mockService.lastUpdate != nil {
		t.Error("Update must not reach the service when owner is supplied")
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	mockService, router, _ := setupTaskHandler()
	mockService.returnNotFound = true

	taskID := uuid.Must(uuid.NewV4())
	w := performJSON(router, "PUT", "/tasks/"+taskID.String(), []byte(`{"title": "Updated"}`))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	_, router, _ := setupTaskHandler()

	taskID := uuid.Must(uuid.NewV4())
	w := performJSON(router, "DELETE", "/tasks/"+taskID.String(), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeEnvelope(t, w)
	if response["success"] != true || response["message"] != "Task deleted." {
		t.Errorf("Unexpected delete envelope: %v", response)
	}
}

func TestDeleteTask_NotFound(t *testing.T) {
	mockService, router, _ := setupTaskHandler()
	mockService.returnNotFound = true

	taskID := uuid.Must(uuid.NewV4())
	w := performJSON(router, "DELETE", "/tasks/"+taskID.String(), nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestGetStats(t *testing.T) {
	mockService, router, _ := setupTaskHandler()
	mockService.stats = services.TaskStats{Total: 5, Completed: 2, Pending: 3}

	w := performJSON(router, "GET", "/tasks/stats", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeEnvelope(t, w)
	stats, ok := response["stats"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected stats object, got %v", response["stats"])
	}
	if stats["total"] != float64(5) {
		t.Errorf("Expected total 5, got %v", stats["total"])
	}
}

func TestTaskRoutes_MissingIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewTaskHandler(nil, &MockTaskService{}, nil)

	router := gin.New()
	router.GET("/tasks", handler.GetTasks)

	w := performJSON(router, "GET", "/tasks", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without identity, got %d", http.StatusUnauthorized, w.Code)
	}
}
