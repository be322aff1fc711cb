package persistence

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fixbench/repair-desk/internal/config"
)

// OpenBolt opens (creating if needed) the embedded database file.
func OpenBolt(cfg config.BoltConfig, logger *zap.Logger) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	logger.Info("opened bolt store", zap.String("path", cfg.Path))
	return db, nil
}
