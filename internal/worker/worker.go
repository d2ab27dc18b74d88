package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tasktrack/backend/internal/logger"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeTaskReminder JobType = "task_reminder"
)

const (
	QueueReminders = "reminders"
	QueueDefault   = "default"
	queueDead      = "dead_queue"
	queueRetry     = "retry_queue"
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

// Worker drains Redis list queues and dispatches jobs to registered
// handlers. Failed jobs retry with exponential backoff until MaxTries, then
// land on the dead queue.
type Worker struct {
	client       *redis.Client
	log          *logger.Logger
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	retryBase    time.Duration
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient *redis.Client
	Logger      *logger.Logger
	Queues      []string
	// PollInterval paces the loop when the head job is not due yet.
	PollInterval time.Duration
	// RetryBaseDelay is the backoff unit for failed jobs; attempt n waits
	// 2^n times this long.
	RetryBaseDelay time.Duration
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{QueueReminders, QueueDefault}
	}
	// Retrying jobs park on their own queue; the loop must drain it or they
	// would strand there forever.
	hasRetry := false
	for _, q := range queues {
		if q == queueRetry {
			hasRetry = true
			break
		}
	}
	if !hasRetry {
		queues = append(queues, queueRetry)
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	retryBase := config.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = time.Minute
	}

	return &Worker{
		client:       config.RedisClient,
		log:          config.Logger,
		handlers:     make(map[JobType]JobHandler),
		queues:       queues,
		pollInterval: pollInterval,
		retryBase:    retryBase,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(concurrency int) {
	w.log.Infow("starting worker", "goroutines", concurrency, "queues", w.queues)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

func (w *Worker) Stop() {
	w.log.Info("stopping worker")
	w.cancel()
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if err := w.processNextJob(); err != nil {
				w.log.Errorw("job processing error", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processNextJob() error {
	result, err := w.client.BLPop(w.ctx, 5*time.Second, w.queues...).Result()
	if err != nil {
		if err == redis.Nil || w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queue := result[0]
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	// Not due yet: push it back, then wait out the poll interval so a lone
	// future job does not spin the loop against Redis.
	if time.Now().Before(job.ProcessAt) {
		if err := w.enqueueJob(queue, &job); err != nil {
			return err
		}
		select {
		case <-w.ctx.Done():
		case <-time.After(w.pollInterval):
		}
		return nil
	}

	return w.executeJob(&job)
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for job type: %s", job.Type)
	}

	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	if err := handler(ctx, job); err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			w.log.Warnw("job failed, retrying",
				"job_id", job.ID, "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
			return w.retryJob(job)
		}

		w.log.Errorw("job failed permanently",
			"job_id", job.ID, "attempts", job.Attempts, "error", err)
		return w.moveToDeadQueue(job, err)
	}

	w.log.Debugw("job completed", "job_id", job.ID, "type", job.Type)
	return nil
}

func (w *Worker) retryJob(job *Job) error {
	delay := time.Duration(1<<job.Attempts) * w.retryBase
	job.ProcessAt = time.Now().Add(delay)

	return w.enqueueJob(queueRetry, job)
}

func (w *Worker) enqueueJob(queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.RPush(w.ctx, queue, jobData).Err()
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(w.ctx, queueDead, deadJobData).Err()
}

// JobQueue is the producer side used by request handlers.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}
