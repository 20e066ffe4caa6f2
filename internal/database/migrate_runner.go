package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"skillswap/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies and reverts a fixed set of migrations against db. Each
// step runs in its own transaction together with its migration_logs row.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a Migrator for migrations, which must be sorted by version.
func NewMigrator(db *gorm.DB, migrations []Migration) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

// Applied returns the recorded versions, oldest first.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	if !m.db.Migrator().HasTable(&MigrationLog{}) {
		return []int{}, nil
	}
	versions := []int{}
	if err := m.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return versions, nil
}

// Pending returns the migrations not yet recorded.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateAppliedVersions(applied, m.migrations); err != nil {
		return nil, err
	}

	pending := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration in version order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return 0, fmt.Errorf("ensure migration_logs: %w", err)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig, err)
		}
	}
	return len(pending), nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig, ok := findMigration(m.migrations, version)
	if !ok {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", mig)
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", mig.String()))
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", mig, err)
	}
	return nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	all, err := Migrations()
	if err != nil {
		return err
	}
	_, err = NewMigrator(db, all).Up(ctx)
	return err
}

// RollbackMigration reverts one embedded migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	all, err := Migrations()
	if err != nil {
		return err
	}
	return NewMigrator(db, all).Down(ctx, version)
}

// validateAppliedVersions refuses to run when the database is ahead of the binary.
func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, version := range applied {
		if _, ok := findMigration(registered, version); !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
}
