package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/postledger/internal/archive"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// store is the configured ledger backend plus its lifecycle hooks.
type store struct {
	backend string
	ledger  postledger.Ledger
	logger  *zap.Logger

	archivePath string
	closeFn     func()
}

// openStore opens the backend named by storage.backend. The memory backend is
// restored from storage.archive_path when one is configured.
func openStore(ctx context.Context, logger *zap.Logger) (*store, error) {
	s := &store{
		backend: viper.GetString("storage.backend"),
		logger:  logger,
		closeFn: func() {},
	}

	switch s.backend {
	case "memory":
		mem := postledger.NewMemoryLedger()
		s.ledger = mem
		s.archivePath = viper.GetString("storage.archive_path")
		if s.archivePath != "" {
			n, err := archive.Restore(ctx, mem, s.archivePath)
			if err != nil {
				return nil, fmt.Errorf("restore archive %s: %w", s.archivePath, err)
			}
			logger.Info("ledger restored from archive", zap.String("path", s.archivePath), zap.Int("posts", n))
		} else {
			logger.Warn("memory ledger without storage.archive_path; posts are lost on exit")
		}

	case "sqlite":
		path := viper.GetString("storage.sqlite_path")
		lite, err := postledger.OpenSQLiteLedger(path, logger)
		if err != nil {
			return nil, err
		}
		s.ledger = lite
		s.closeFn = func() {
			if err := lite.Close(); err != nil {
				logger.Error("close sqlite", zap.Error(err))
			}
		}
		logger.Info("sqlite ledger opened", zap.String("path", path))

	case "postgres":
		pool, err := pgxpool.New(ctx, viper.GetString("database.url"))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		s.ledger = postledger.NewPostgresLedger(pool, logger)
		s.closeFn = pool.Close
		logger.Info("postgres ledger connected")

	default:
		return nil, fmt.Errorf("unknown storage.backend %q (want memory, sqlite or postgres)", s.backend)
	}

	if err := s.ledger.Verify(ctx); err != nil {
		s.closeFn()
		return nil, fmt.Errorf("ledger failed integrity check: %w", err)
	}
	return s, nil
}

// snapshot writes the archive for the memory backend. Other backends are
// already durable.
func (s *store) snapshot(ctx context.Context) error {
	if s.archivePath == "" {
		return nil
	}
	n, err := archive.Snapshot(ctx, s.ledger, s.archivePath)
	if err != nil {
		return err
	}
	s.logger.Info("ledger archived", zap.String("path", s.archivePath), zap.Int("posts", n))
	return nil
}

func (s *store) close() {
	s.closeFn()
}
