package services

import (
	"errors"
	"time"

	"tasktrack/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// TaskUpdate carries the mutable task fields. Nil pointers leave the stored
// value untouched. The owner is deliberately absent: it is fixed at creation.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	Completed   *bool
}

type TaskStats struct {
	Total      int64            `json:"total"`
	Completed  int64            `json:"completed"`
	Pending    int64            `json:"pending"`
	Overdue    int64            `json:"overdue"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// TaskService is the ownership-scoped task store. Every method filters by the
// owner id resolved by the auth gate, so a task is never visible or writable
// across accounts. An id that exists but belongs to someone else surfaces as
// gorm.ErrRecordNotFound, indistinguishable from true absence.
type TaskService interface {
	CreateTask(db *gorm.DB, task models.Task) error
	GetTask(db *gorm.DB, ownerID, id uuid.UUID) (models.Task, error)
	ListTasks(db *gorm.DB, ownerID uuid.UUID) ([]models.Task, error)
	UpdateTask(db *gorm.DB, ownerID, id uuid.UUID, updates TaskUpdate) (models.Task, error)
	DeleteTask(db *gorm.DB, ownerID, id uuid.UUID) error
	GetStats(db *gorm.DB, ownerID uuid.UUID) (TaskStats, error)
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, task models.Task) error {
	return db.Create(&task).Error
}

func (s *TaskServiceImpl) GetTask(db *gorm.DB, ownerID, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := db.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error
	return task, err
}

func (s *TaskServiceImpl) ListTasks(db *gorm.DB, ownerID uuid.UUID) ([]models.Task, error) {
	tasks := []models.Task{}
	err := db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, ownerID, id uuid.UUID, updates TaskUpdate) (models.Task, error) {
	var task models.Task
	if err := db.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error; err != nil {
		return models.Task{}, err
	}

	if updates.Title != nil {
		task.Title = *updates.Title
	}
	if updates.Description != nil {
		task.Description = *updates.Description
	}
	if updates.Priority != nil {
		task.Priority = *updates.Priority
	}
	if updates.DueDate != nil {
		task.DueDate = updates.DueDate
	}
	if updates.Completed != nil {
		task.Completed = *updates.Completed
	}

	// Concurrent updates of the same task are last-write-wins; single-row
	// atomicity comes from the store.
	if err := db.Save(&task).Error; err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, ownerID, id uuid.UUID) error {
	result := db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *TaskServiceImpl) GetStats(db *gorm.DB, ownerID uuid.UUID) (TaskStats, error) {
	stats := TaskStats{ByPriority: map[string]int64{}}

	owned := func() *gorm.DB {
		return db.Model(&models.Task{}).Where("owner_id = ?", ownerID)
	}

	if err := owned().Count(&stats.Total).Error; err != nil {
		return TaskStats{}, err
	}
	if err := owned().Where("completed = ?", true).Count(&stats.Completed).Error; err != nil {
		return TaskStats{}, err
	}
	stats.Pending = stats.Total - stats.Completed

	if err := owned().
		Where("completed = ? AND due_date IS NOT NULL AND due_date < ?", false, time.Now()).
		Count(&stats.Overdue).Error; err != nil {
		return TaskStats{}, err
	}

	type priorityCount struct {
		Priority string
		Count    int64
	}
	var counts []priorityCount
	if err := owned().
		Select("priority, COUNT(*) as count").
		Group("priority").
		Scan(&counts).Error; err != nil {
		return TaskStats{}, err
	}
	for _, pc := range counts {
		stats.ByPriority[pc.Priority] = pc.Count
	}

	return stats, nil
}

// IsNotFound reports whether err means the task is absent or not owned by
// the requester. Handlers must not distinguish the two.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
