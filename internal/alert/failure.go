// Package alert aggregates upstream generation failures in Redis and reports
// when an operation crosses its failure threshold within a window.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var failureCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

const (
	defaultPrefix    = "codeassist:upstream:failures"
	defaultThreshold = 10
	defaultWindow    = 5 * time.Minute
)

// Result contains one observation's outcome.
type Result struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// FailureAlerter counts failures per operation in fixed time windows.
// A nil *FailureAlerter is valid and observes nothing.
type FailureAlerter struct {
	redisClient *redis.Client
	prefix      string
	threshold   int64
	window      time.Duration
}

// Config configures NewFailureAlerter. Zero values take defaults.
type Config struct {
	Addr      string
	Password  string
	Prefix    string
	Threshold int
	Window    time.Duration
}

// NewFailureAlerter returns nil without error when cfg.Addr is empty.
func NewFailureAlerter(cfg Config) (*FailureAlerter, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, nil
	}
	if cfg.Threshold < 0 || cfg.Window < 0 {
		return nil, errors.New("failure alerter requires non-negative threshold and window")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	threshold := int64(cfg.Threshold)
	if threshold == 0 {
		threshold = defaultThreshold
	}
	window := cfg.Window
	if window == 0 {
		window = defaultWindow
	}
	return &FailureAlerter{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
		}),
		prefix:    prefix,
		threshold: threshold,
		window:    window,
	}, nil
}

// Observe records one failure for operation.
func (a *FailureAlerter) Observe(ctx context.Context, operation string) (Result, error) {
	if a == nil || a.redisClient == nil {
		return Result{}, nil
	}
	windowMs := a.window.Milliseconds()
	if windowMs <= 0 {
		return Result{}, nil
	}
	slot := time.Now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%d", a.prefix, sanitizeSegment(operation), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := failureCounterScript.Run(ctx, a.redisClient, []string{key}, windowMs).Int64()
	if err != nil {
		return Result{}, fmt.Errorf("observe failure: %w", err)
	}
	return Result{
		Triggered: count >= a.threshold,
		Count:     count,
		Threshold: a.threshold,
		Window:    a.window,
	}, nil
}

// Close releases the Redis connection pool.
func (a *FailureAlerter) Close() error {
	if a == nil || a.redisClient == nil {
		return nil
	}
	return a.redisClient.Close()
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
