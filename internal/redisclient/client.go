// Package redisclient opens the store connection used by the entity engine
package redisclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/redisstore/internal/config"
)

// Options converts the connection configuration into client options
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// New creates a client and verifies the connection
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// LoggingHook logs every command at debug level with its duration
type LoggingHook struct {
	logger *zap.Logger
}

// NewLoggingHook creates a new command logging hook
func NewLoggingHook(logger *zap.Logger) *LoggingHook {
	return &LoggingHook{logger: logger.Named("redis")}
}

// DialHook logs new connections
func (h *LoggingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.logger.Warn("dial failed", zap.String("addr", addr), zap.Error(err))
			return nil, err
		}
		h.logger.Debug("dialed", zap.String("addr", addr))
		return conn, nil
	}
}

// ProcessHook logs single commands
func (h *LoggingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.log(cmd, time.Since(start), err)
		return err
	}
}

// ProcessPipelineHook logs each command of a pipeline or transaction
func (h *LoggingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)
		for _, cmd := range cmds {
			h.log(cmd, elapsed, cmd.Err())
		}
		return err
	}
}

func (h *LoggingHook) log(cmd redis.Cmder, elapsed time.Duration, err error) {
	if ce := h.logger.Check(zap.DebugLevel, "command"); ce != nil {
		fields := []zap.Field{
			zap.String("cmd", cmd.FullName()),
			zap.Int("args", len(cmd.Args())),
			zap.Duration("elapsed", elapsed),
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			fields = append(fields, zap.Error(err))
		}
		ce.Write(fields...)
	}
}
