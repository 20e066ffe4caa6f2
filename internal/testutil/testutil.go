// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"skillswap/internal/database"
	"skillswap/internal/models"
	"skillswap/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated SQLite database in the test's temp dir and closes
// it when the test ends.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// MessageLogStub is an in-memory chat log whose failures can be switched on.
type MessageLogStub struct {
	mu         sync.Mutex
	items      []models.ChatMessage
	appendErr  error
	historyErr error
}

var _ repository.MessageLog = (*MessageLogStub)(nil)

func NewMessageLogStub() *MessageLogStub {
	return &MessageLogStub{}
}

// FailAppend makes every later Append return err; nil restores normal behaviour.
func (s *MessageLogStub) FailAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// FailHistory makes every later History return err.
func (s *MessageLogStub) FailHistory(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyErr = err
}

func (s *MessageLogStub) Append(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return models.NewInternalError(s.appendErr)
	}
	s.items = append(s.items, *msg)
	return nil
}

func (s *MessageLogStub) History(_ context.Context, bookingID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, models.NewInternalError(s.historyErr)
	}
	out := []models.ChatMessage{}
	for _, m := range s.items {
		if m.BookingID == bookingID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Len reports how many messages were stored.
func (s *MessageLogStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
