package services

import (
	"errors"
	"fmt"
	"time"

	"tasktrack/backend/internal/cache"
	"tasktrack/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	taskCacheTTL  = 30 * time.Minute
	statsCacheTTL = 5 * time.Minute
)

// CachedTaskService decorates a TaskService with Redis-backed caching of
// single-task reads and per-owner statistics. Any cache error, including a
// tripped breaker, falls through to the database; writes invalidate the
// owner's cached entries.
type CachedTaskService struct {
	taskService TaskService
	cache       *cache.RedisCache
}

func NewCachedTaskService(taskService TaskService, cacheInstance *cache.RedisCache) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
	}
}

func taskKey(ownerID, id uuid.UUID) string {
	return fmt.Sprintf("task:%s:%s", ownerID.String(), id.String())
}

func statsKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("task_stats:%s", ownerID.String())
}

func (s *CachedTaskService) CreateTask(db *gorm.DB, task models.Task) error {
	if err := s.taskService.CreateTask(db, task); err != nil {
		return err
	}

	s.cache.Set(taskKey(task.OwnerID, task.ID), task, taskCacheTTL)
	s.invalidateOwner(task.OwnerID)
	return nil
}

func (s *CachedTaskService) GetTask(db *gorm.DB, ownerID, id uuid.UUID) (models.Task, error) {
	var cached models.Task
	if err := s.cache.Get(taskKey(ownerID, id), &cached); err == nil {
		return cached, nil
	}

	task, err := s.taskService.GetTask(db, ownerID, id)
	if err != nil {
		return task, err
	}

	s.cache.Set(taskKey(ownerID, id), task, taskCacheTTL)
	return task, nil
}

func (s *CachedTaskService) ListTasks(db *gorm.DB, ownerID uuid.UUID) ([]models.Task, error) {
	return s.taskService.ListTasks(db, ownerID)
}

func (s *CachedTaskService) UpdateTask(db *gorm.DB, ownerID, id uuid.UUID, updates TaskUpdate) (models.Task, error) {
	task, err := s.taskService.UpdateTask(db, ownerID, id, updates)
	if err != nil {
		return task, err
	}

	s.cache.Set(taskKey(ownerID, id), task, taskCacheTTL)
	s.cache.Delete(statsKey(ownerID))
	return task, nil
}

func (s *CachedTaskService) DeleteTask(db *gorm.DB, ownerID, id uuid.UUID) error {
	if err := s.taskService.DeleteTask(db, ownerID, id); err != nil {
		return err
	}

	s.cache.Delete(taskKey(ownerID, id))
	s.cache.Delete(statsKey(ownerID))
	return nil
}

func (s *CachedTaskService) GetStats(db *gorm.DB, ownerID uuid.UUID) (TaskStats, error) {
	var cached TaskStats
	err := s.cache.Get(statsKey(ownerID), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDown) {
		// Corrupt entry: drop it and rebuild from the database.
		s.cache.Delete(statsKey(ownerID))
	}

	stats, err := s.taskService.GetStats(db, ownerID)
	if err != nil {
		return stats, err
	}

	s.cache.Set(statsKey(ownerID), stats, statsCacheTTL)
	return stats, nil
}

func (s *CachedTaskService) invalidateOwner(ownerID uuid.UUID) {
	s.cache.Delete(statsKey(ownerID))
	s.cache.DeletePattern(fmt.Sprintf("task:%s:*", ownerID.String()))
}
