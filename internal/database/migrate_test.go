package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var sampleMigrations = fstest.MapFS{
	"000002_reviews.up.sql":   {Data: []byte("CREATE TABLE reviews (id TEXT PRIMARY KEY, booking_id TEXT NOT NULL);")},
	"000002_reviews.down.sql": {Data: []byte("DROP TABLE reviews;")},
	"000001_tags.up.sql":      {Data: []byte("CREATE TABLE tags (id TEXT PRIMARY KEY); CREATE INDEX idx_tags_id ON tags (id);")},
	"000001_tags.down.sql":    {Data: []byte("DROP TABLE tags;")},
	"README.md":               {Data: []byte("ignored")},
}

func TestLoadMigrations(t *testing.T) {
	all, err := LoadMigrations(sampleMigrations)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "000001_tags", all[0].String())
	assert.Equal(t, "000002_reviews", all[1].String())
	assert.Equal(t, "DROP TABLE reviews;", all[1].DownScript)
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"missing down": {
			"000001_tags.up.sql": {Data: []byte("SELECT 1;")},
		},
		"no name": {
			"000001.up.sql":   {Data: []byte("SELECT 1;")},
			"000001.down.sql": {Data: []byte("SELECT 1;")},
		},
		"bad version": {
			"v1_tags.up.sql":   {Data: []byte("SELECT 1;")},
			"v1_tags.down.sql": {Data: []byte("SELECT 1;")},
		},
		"duplicate version": {
			"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
			"000001_a.down.sql": {Data: []byte("SELECT 1;")},
			"1_b.up.sql":        {Data: []byte("SELECT 1;")},
			"1_b.down.sql":      {Data: []byte("SELECT 1;")},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMigrations(fsys)
			assert.Error(t, err)
		})
	}
}

func TestMigrator_UpDown(t *testing.T) {
	ctx := context.Background()
	db := sqliteDB(t)
	all, err := LoadMigrations(sampleMigrations)
	require.NoError(t, err)
	m := NewMigrator(db, all)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("tags"))
	assert.True(t, db.Migrator().HasTable("reviews"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")

	applied, err = m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)

	require.NoError(t, m.Down(ctx, 2))
	assert.False(t, db.Migrator().HasTable("reviews"))

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.Error(t, m.Down(ctx, 2), "already reverted")
	assert.Error(t, m.Down(ctx, 7), "unknown version")
}

func TestMigrator_FailedStepRollsBack(t *testing.T) {
	ctx := context.Background()
	db := sqliteDB(t)
	m := NewMigrator(db, []Migration{
		{Version: 1, Name: "ok", UpScript: "CREATE TABLE a (id TEXT);", DownScript: "DROP TABLE a;"},
		{Version: 2, Name: "broken", UpScript: "CREATE TABLE b (id TEXT); NOT SQL;", DownScript: "DROP TABLE b;"},
	})

	n, err := m.Up(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "000002_broken")

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.False(t, db.Migrator().HasTable("b"))
}

func TestMigrator_RefusesUnknownApplied(t *testing.T) {
	ctx := context.Background()
	db := sqliteDB(t)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	require.NoError(t, db.Create(&MigrationLog{Version: 9, Name: "future"}).Error)

	_, err := NewMigrator(db, nil).Up(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000009")
}
