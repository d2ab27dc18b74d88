package handlers

import (
	"net/http"
	"time"

	"tasktrack/backend/internal/logger"
	"tasktrack/backend/internal/models"
	"tasktrack/backend/internal/services"
	"tasktrack/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
	queue       *worker.JobQueue
}

// NewTaskHandler wires the task routes. queue may be nil; reminders are then
// skipped.
func NewTaskHandler(db *gorm.DB, taskService services.TaskService, queue *worker.JobQueue) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService, queue: queue}
}

type createTaskInput struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

type updateTaskInput struct {
	Title       *string    `json:"title" binding:"omitempty,min=1"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
	Owner       *string    `json:"owner"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	var input createTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondValidationFailed(c, "Title is required; priority must be low, medium or high; completed must be a boolean.")
		return
	}

	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}

	// Owner comes from the verified identity only. Anything the caller put
	// in an owner field is discarded with the rest of the unknown keys.
	completed := false
	if input.Completed != nil {
		completed = *input.Completed
	}

	task := models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		Completed:   completed,
	}

	if err := h.taskService.CreateTask(h.db, task); err != nil {
		respondServerError(c)
		return
	}

	h.scheduleReminder(task)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"task":    task,
	})
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	tasks, err := h.taskService.ListTasks(h.db, ownerID)
	if err != nil {
		respondServerError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   tasks,
	})
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondTaskNotFound(c)
		return
	}

	task, err := h.taskService.GetTask(h.db, ownerID, taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"task":    task,
	})
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondTaskNotFound(c)
		return
	}

	var input updateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondValidationFailed(c, "Invalid task fields; completed must be a boolean.")
		return
	}

	if input.Owner != nil {
		respondValidationFailed(c, "Task owner cannot be changed.")
		return
	}

	task, err := h.taskService.UpdateTask(h.db, ownerID, taskID, services.TaskUpdate{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		Completed:   input.Completed,
	})
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"task":    task,
	})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondTaskNotFound(c)
		return
	}

	if err := h.taskService.DeleteTask(h.db, ownerID, taskID); err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task deleted.",
	})
}

func (h *TaskHandler) GetStats(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	stats, err := h.taskService.GetStats(h.db, ownerID)
	if err != nil {
		respondServerError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

func (h *TaskHandler) scheduleReminder(task models.Task) {
	if h.queue == nil || task.DueDate == nil || task.Completed {
		return
	}

	processAt := task.DueDate.Add(-time.Hour)
	if processAt.Before(time.Now()) {
		processAt = time.Now()
	}

	err := h.queue.EnqueueAt(worker.QueueReminders, worker.JobTypeTaskReminder, map[string]interface{}{
		"task_id": task.ID.String(),
		"owner":   task.OwnerID.String(),
		"title":   task.Title,
		"due_at":  task.DueDate,
	}, processAt)
	if err != nil {
		// The task itself is saved; only the reminder is lost.
		logger.Get(logger.InfoLevel).Warnw("failed to schedule reminder",
			"task_id", task.ID.String(),
			"error", err,
		)
	}
}

func handleTaskError(c *gin.Context, err error) {
	// Absent and not-owned are reported identically so task ids cannot be
	// probed across accounts.
	if services.IsNotFound(err) {
		respondTaskNotFound(c)
		return
	}
	respondServerError(c)
}

func respondTaskNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   "not_found",
		"message": "Task not found.",
	})
}

func respondValidationFailed(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "validation_failed",
		"message": message,
	})
}

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthenticated",
		"message": "User not authenticated.",
	})
}

func respondServerError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "server_error",
		"message": "Server error.",
	})
}
