package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/config"
)

// ReconnectWithRetry attempts to connect to the database with exponential backoff.
//
// Parameters:
//   - cfg: Database configuration
//   - maxRetries: Maximum number of connection attempts (0 = until ctx is done)
//   - initialDelay: Initial wait time between attempts
//
// Returns: Connected database or the last error once retries are exhausted
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, logger *logging.Logger) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		logger.Debug("Database connection attempt", slog.Int("attempt", attempt))

		db, err := Connect(ctx, cfg)
		if err == nil {
			logger.Info("Database connected", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			logger.Error("Database unreachable", slog.Int("attempts", attempt), slog.Any("error", err))
			return nil, err
		}

		logger.Warn("Database connection failed",
			slog.Any("error", err),
			slog.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection returns db when it still answers a health check.
// Otherwise db is closed and a new connection is attempted up to attempts
// times. On failure the returned DB is nil, never the closed one.
func EnsureConnection(ctx context.Context, db *DB, cfg config.DatabaseConfig, attempts int, delay time.Duration, logger *logging.Logger) (*DB, error) {
	if db != nil {
		err := HealthCheck(ctx, db)
		if err == nil {
			return db, nil
		}
		logger.Warn("Database connection lost, reconnecting", slog.Any("error", err))
		db.Close()
	}
	return ReconnectWithRetry(ctx, cfg, attempts, delay, logger)
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) error {
	if db == nil {
		return errors.New("database not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return err
	}
	if result != 1 {
		return errors.New("unexpected health check result")
	}
	return nil
}

// connErrors are substrings of errors worth retrying.
var connErrors = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"bad connection",
	"eof",
	"timeout",
}

// isConnError reports whether err looks like a transient connection failure.
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry executes a database operation, retrying connection failures
// with a linearly growing pause. Other errors are returned immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isConnError(err) {
			return err
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}

	return lastErr
}
