package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"skillswap/internal/config"
	"skillswap/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan says which schema steps ApplySchema takes for a config.
type SchemaPlan struct {
	Mode   string
	RunSQL bool
	// RunAuto runs GORM AutoMigrate after the SQL migrations.
	RunAuto bool
}

// SchemaStatus is a SchemaPlan plus the migration bookkeeping it implies.
type SchemaStatus struct {
	SchemaPlan
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE against the driver and environment.
// The SQL migrations are written for Postgres, so SQLite always auto-migrates.
// Production refuses a bare AutoMigrate unless destructive changes are allowed.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	plan := SchemaPlan{Mode: mode}

	switch mode {
	case SchemaModeSQL, SchemaModeAuto, SchemaModeHybrid:
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}

	if cfg.DBDriver == "sqlite" {
		plan.RunAuto = true
		return plan, nil
	}

	prod := isProdLikeEnv(cfg.Env)
	switch mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prod && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAuto = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.RunAuto = !prod
	}
	return plan, nil
}

// ApplySchema brings the schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if plan.RunAuto {
		if plan.Mode == SchemaModeAuto && isProdLikeEnv(cfg.Env) {
			middleware.Logger.Warn("AutoMigrate running against a production-like database")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.Mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports what ApplySchema would do and which migrations are pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, Environment: cfg.Env}
	if !plan.RunSQL {
		return status, nil
	}

	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	m := NewMigrator(db, all)
	if status.AppliedVersions, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.PendingMigrations, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
