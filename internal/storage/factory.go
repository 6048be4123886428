// Package storage selects and builds the document store backend, and
// provides the envelope codec shared by every writer.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/storage/memory"
	"github.com/bobmcallan/intellivest/internal/storage/redis"
	"github.com/bobmcallan/intellivest/internal/storage/surrealdb"
)

// NewDocumentStore creates the backend named by config.Backend.
// Supported backends: "surrealdb" (default), "redis", "memory".
func NewDocumentStore(ctx context.Context, logger *common.Logger, config common.StorageConfig) (interfaces.DocumentStore, error) {
	backend := config.Backend
	if backend == "" {
		backend = common.BackendSurrealDB
	}

	switch backend {
	case common.BackendSurrealDB:
		return surrealdb.NewStore(ctx, logger, config)

	case common.BackendRedis:
		return redis.NewStore(ctx, logger, config.Redis)

	case common.BackendMemory:
		logger.Warn().Msg("Using in-memory document store; state is lost on exit")
		return memory.NewStore(logger), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: surrealdb, redis, memory)", backend)
	}
}
