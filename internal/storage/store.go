package storage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the transactional persistence layer. A single mutex
// serializes every operation — this IS the "DB lock" that must always
// be acquired before the download pool's lock, never after.
type Store struct {
	mu     sync.Mutex
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the sqlite database at path and
// migrates the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db, logger: log}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateAPIToken draws a 32-character token from [A-Za-z0-9], the
// same charset and length as the original's User::generate_api_token.
func generateAPIToken() (string, error) {
	out := make([]byte, 32)
	max := big.NewInt(int64(len(tokenCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenCharset[n.Int64()]
	}
	return string(out), nil
}

// EnsureAdminUser creates the sole "admin" user with a freshly
// generated token if it does not already exist. Safe to call on every
// startup.
func (s *Store) EnsureAdminUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing User
	err := s.db.Where("name = ?", "admin").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	token, err := generateAPIToken()
	if err != nil {
		return fmt.Errorf("generating admin token: %w", err)
	}
	admin := User{UserID: uuid.New(), Name: "admin", APIToken: token}
	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	s.logger.Info("provisioned admin user")
	return nil
}

// GetUserByName is used by the get-token CLI subcommand.
func (s *Store) GetUserByName(name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u User
	if err := s.db.Where("name = ?", name).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ReconcileOnStartup rewrites any task left in Waiting or Processing
// to Failed, since neither state can legitimately survive a process
// restart. "finished_at = started_at" is applied literally, including
// for Waiting rows whose started_at is still NULL — their finished_at
// becomes NULL too.
func (s *Store) ReconcileOnStartup() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Exec(
		`UPDATE tasks SET status = ?, finished_at = started_at WHERE status IN (?, ?)`,
		TaskFailed, TaskWaiting, TaskProcessing,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("reconciling startup state: %w", res.Error)
	}
	return res.RowsAffected, nil
}
