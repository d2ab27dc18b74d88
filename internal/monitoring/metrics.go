package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"tasktrack/backend/internal/cache"
	"tasktrack/backend/internal/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

var globalMetrics = &Metrics{
	StatusCodes: make(map[string]int64),
	Endpoints:   make(map[string]int64),
	StartTime:   time.Now(),
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		globalMetrics.mu.Lock()
		globalMetrics.ActiveRequests++
		globalMetrics.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()

		globalMetrics.mu.Lock()
		globalMetrics.RequestCount++
		globalMetrics.ActiveRequests--
		globalMetrics.totalDuration += duration
		globalMetrics.RequestDuration = globalMetrics.totalDuration / time.Duration(globalMetrics.RequestCount)
		globalMetrics.LastRequest = time.Now()

		if statusCode >= 400 {
			globalMetrics.ErrorCount++
		}
		globalMetrics.StatusCodes[http.StatusText(statusCode)]++
		globalMetrics.Endpoints[endpoint]++
		globalMetrics.mu.Unlock()
	}
}

func GetMetrics() *Metrics {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	metrics := &Metrics{
		RequestCount:    globalMetrics.RequestCount,
		RequestDuration: globalMetrics.RequestDuration,
		ActiveRequests:  globalMetrics.ActiveRequests,
		ErrorCount:      globalMetrics.ErrorCount,
		StatusCodes:     make(map[string]int64),
		Endpoints:       make(map[string]int64),
		StartTime:       globalMetrics.StartTime,
		LastRequest:     globalMetrics.LastRequest,
	}

	for k, v := range globalMetrics.StatusCodes {
		metrics.StatusCodes[k] = v
	}
	for k, v := range globalMetrics.Endpoints {
		metrics.Endpoints[k] = v
	}

	return metrics
}

type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime"`
	MemoryAllocMB  uint64        `json:"memory_alloc_mb"`
	GoroutineCount int           `json:"goroutine_count"`
	GoVersion      string        `json:"go_version"`
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime:         time.Since(globalMetrics.StartTime),
		MemoryAllocMB:  m.Alloc / 1024 / 1024,
		GoroutineCount: runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
	}
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application": GetMetrics(),
			"system":      GetSystemMetrics(),
			"timestamp":   time.Now(),
		})
	}
}

type componentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func checkComponents(db *gorm.DB, redisCache *cache.RedisCache) (map[string]componentHealth, bool) {
	checks := make(map[string]componentHealth)
	healthy := true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbHealth := componentHealth{Status: "healthy"}
	if err := database.Ping(ctx, db); err != nil {
		dbHealth = componentHealth{Status: "unhealthy", Message: err.Error()}
		healthy = false
	}
	checks["database"] = dbHealth

	// The cache is optional capacity, not a dependency: an unhealthy Redis
	// degrades performance but does not fail readiness.
	cacheHealth := componentHealth{Status: "healthy"}
	if redisCache != nil {
		if err := redisCache.Health(); err != nil {
			cacheHealth = componentHealth{Status: "unhealthy", Message: err.Error()}
		}
	}
	checks["cache"] = cacheHealth

	return checks, healthy
}

func HealthHandler(db *gorm.DB, redisCache *cache.RedisCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks, healthy := checkComponents(db, redisCache)

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"checks":    checks,
			"uptime":    time.Since(globalMetrics.StartTime).String(),
			"timestamp": time.Now(),
		})
	}
}

func ReadinessHandler(db *gorm.DB, redisCache *cache.RedisCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, healthy := checkComponents(db, redisCache)

		if healthy {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": time.Now()})
	}
}
