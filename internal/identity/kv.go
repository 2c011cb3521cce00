package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// KV is the persistence port for durable console identity. Implementations
// must tolerate concurrent use. A Set failure is non-fatal to callers: the
// Store keeps the value in memory for the rest of the process.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type kvRow struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value"`
}

func (kvRow) TableName() string { return "console_kv" }

// SQLiteKV persists identity under <dataDir>/console.db.
type SQLiteKV struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteKV(dataDir string, logg *logger.Logger) (*SQLiteKV, error) {
	serviceLog := logg.With("service", "SQLiteKV")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "console.db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate console_kv: %w", err)
	}

	serviceLog.Debug("Local KV store ready", "path", path)
	return &SQLiteKV{db: db, log: serviceLog}, nil
}

func (s *SQLiteKV) Get(key string) (string, bool) {
	var row kvRow
	err := s.db.First(&row, "key = ?", key).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			s.log.Warn("KV read failed", "key", key, "error", err)
		}
		return "", false
	}
	return row.Value, true
}

func (s *SQLiteKV) Set(key, value string) error {
	row := kvRow{Key: key, Value: value}
	return s.db.Save(&row).Error
}
