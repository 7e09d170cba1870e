package app

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by backends the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to Pinger.
type RedisPinger struct {
	Client *redis.Client
}

// Ping issues a PING to Redis.
func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

type readinessReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ReadinessHandler reports 200 when every dependency answers a ping and 503 otherwise.
func ReadinessHandler(logger *slog.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := readinessReport{Status: "ok", Checks: make(map[string]string, len(names))}
		for _, name := range names {
			if err := deps[name].Ping(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("dependency", name), slog.Any("error", err))
				report.Status = "unavailable"
				report.Checks[name] = "down"
				continue
			}
			report.Checks[name] = "ok"
		}
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, report)
	}
}
