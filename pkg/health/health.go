package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registered struct {
	checker  Checker
	critical bool
}

// CheckerRegistry runs checks concurrently. A failing critical check makes
// the whole service unhealthy, a failing optional one only degrades it.
type CheckerRegistry struct {
	checkers []registered
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, registered{checker: checker, critical: true})
}

func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.checkers = append(r.checkers, registered{checker: checker})
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult, len(r.checkers))
	failedCritical, failedOptional := false, false

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, reg := range r.checkers {
		wg.Add(1)
		go func(reg registered) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			err := reg.checker.Check(ctx)
			result := CheckResult{Status: StatusHealthy, Timestamp: time.Now()}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Message = err.Error()
				if reg.critical {
					result.Status = StatusUnhealthy
					failedCritical = true
				} else {
					result.Status = StatusDegraded
					failedOptional = true
				}
			}
			results[reg.checker.Name()] = result
		}(reg)
	}
	wg.Wait()

	overall := StatusHealthy
	switch {
	case failedCritical:
		overall = StatusUnhealthy
	case failedOptional:
		overall = StatusDegraded
	}

	return Health{Status: overall, Timestamp: time.Now(), Checks: results}
}

// StorageChecker verifies the archive directory accepts writes.
type StorageChecker struct {
	fs billy.Filesystem
}

func NewStorageChecker(fs billy.Filesystem) *StorageChecker {
	return &StorageChecker{fs: fs}
}

func (c *StorageChecker) Name() string {
	return "storage"
}

func (c *StorageChecker) Check(_ context.Context) error {
	const probe = ".health"
	if err := util.WriteFile(c.fs, probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	return c.fs.Remove(probe)
}

// IndexChecker treats any HTTP answer from the index base URL as reachable.
type IndexChecker struct {
	baseURL string
	client  *http.Client
}

func NewIndexChecker(baseURL string, client *http.Client) *IndexChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &IndexChecker{baseURL: baseURL, client: client}
}

func (c *IndexChecker) Name() string {
	return "index"
}

func (c *IndexChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("index unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("index returned %d", resp.StatusCode)
	}
	return nil
}

type PostgreSQLChecker struct {
	db *sql.DB
}

func NewPostgreSQLChecker(db *sql.DB) *PostgreSQLChecker {
	return &PostgreSQLChecker{db: db}
}

func (c *PostgreSQLChecker) Name() string {
	return "postgresql"
}

func (c *PostgreSQLChecker) Check(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type MongoDBChecker struct {
	client *mongo.Client
}

func NewMongoDBChecker(client *mongo.Client) *MongoDBChecker {
	return &MongoDBChecker{client: client}
}

func (c *MongoDBChecker) Name() string {
	return "mongodb"
}

func (c *MongoDBChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}
