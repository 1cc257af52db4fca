// Package health reports dependency status and coarse traffic counters.
package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Service struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, RDB: rdb}
}

// Check is one dependency's status.
type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Traffic is the coarse request counters kept by the health marker.
type Traffic struct {
	Requests    int64  `json:"requests"`
	Errors      int64  `json:"errors"`
	LastRequest string `json:"last_request,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Report is the full health document.
type Report struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Traffic   Traffic          `json:"traffic"`
}

// Collect pings the database and Redis and reads the traffic counters.
// Overall status degrades if any dependency is down.
func (s *Service) Collect(ctx context.Context) Report {
	report := Report{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]Check{},
	}

	report.Checks["database"] = s.checkDatabase(ctx)
	report.Checks["redis"] = s.checkRedis(ctx)
	for _, check := range report.Checks {
		if check.Status != "ok" {
			report.Status = "degraded"
		}
	}

	report.Traffic = s.collectTraffic(ctx)
	return report
}

func (s *Service) checkDatabase(ctx context.Context) Check {
	start := time.Now()
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return Check{Status: "down", Error: err.Error()}
	}
	return Check{Status: "ok", Latency: time.Since(start).String()}
}

func (s *Service) checkRedis(ctx context.Context) Check {
	if s.RDB == nil {
		return Check{Status: "down", Error: "not configured"}
	}
	start := time.Now()
	if err := s.RDB.Ping(ctx).Err(); err != nil {
		return Check{Status: "down", Error: err.Error()}
	}
	return Check{Status: "ok", Latency: time.Since(start).String()}
}

func (s *Service) collectTraffic(ctx context.Context) Traffic {
	var traffic Traffic
	if s.RDB == nil {
		return traffic
	}
	traffic.Requests, _ = s.RDB.Get(ctx, "health:global:requests").Int64()
	traffic.Errors, _ = s.RDB.Get(ctx, "health:global:errors").Int64()
	traffic.LastRequest, _ = s.RDB.Get(ctx, "health:global:last_request").Result()
	traffic.LastError, _ = s.RDB.Get(ctx, "health:global:last_error").Result()
	return traffic
}
