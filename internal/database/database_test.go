package database

import (
	"context"
	"path/filepath"
	"testing"

	"skillswap/internal/config"
	"skillswap/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBDriver:                 "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_SQLiteSingleWriter(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{DBDriver: "sqlite", DBMaxOpenConns: 50}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		runSQL  bool
		runAuto bool
		wantErr bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto prod refused", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"auto prod allowed", config.Config{Env: "production", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "development", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "magic"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			plan, err := PlanSchema(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, plan.RunSQL)
			assert.Equal(t, tt.runAuto, plan.RunAuto)
		})
	}
}

func TestConnectWithOptions_SQLite(t *testing.T) {
	t.Cleanup(func() { _ = Close() })

	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: filepath.Join(t.TempDir(), "test.db"),
		DBSchemaMode: "hybrid",
	}
	db, err := ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
	require.NoError(t, err)
	assert.Same(t, db, GetReadDB())

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.RunSQL)
	assert.True(t, status.RunAuto)
	assert.Empty(t, status.PendingMigrations)

	u := models.User{Name: "Ada", Email: "ada@example.com", Password: "x", Role: models.RoleMentor}
	require.NoError(t, db.Create(&u).Error)
	assert.NotEmpty(t, u.ID)
}

func TestValidateAppliedVersions(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)

	assert.NoError(t, validateAppliedVersions(nil, all))
	assert.NoError(t, validateAppliedVersions([]int{1}, all))
	err = validateAppliedVersions([]int{1, 42}, all)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000042")
}
