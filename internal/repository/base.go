package repository

import (
	"context"
	"errors"
	"strings"

	"skillswap/internal/database"
	"skillswap/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil && db != database.DB {
		return db
	}
	return primary
}

// Collection is the typed data-access surface every entity store offers.
type Collection[T any] interface {
	All(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	// Put inserts v, or replaces the stored row when v's id already exists.
	Put(ctx context.Context, v *T) error
	// Update applies a partial update to the row with the given id.
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

type gormCollection[T any] struct {
	db       *gorm.DB
	resource string
}

// NewCollection returns a gorm-backed Collection. resource names the entity in errors.
func NewCollection[T any](db *gorm.DB, resource string) Collection[T] {
	return &gormCollection[T]{db: db, resource: resource}
}

func (c *gormCollection[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	if err := readDB(c.db).WithContext(ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (c *gormCollection[T]) Get(ctx context.Context, id string) (*T, error) {
	var v T
	if err := readDB(c.db).WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(c.resource, id)
		}
		return nil, models.NewInternalError(err)
	}
	return &v, nil
}

func (c *gormCollection[T]) Put(ctx context.Context, v *T) error {
	if err := c.db.WithContext(ctx).Save(v).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(c.resource+" already exists", err)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (c *gormCollection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	res := c.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(c.resource, id)
	}
	return nil
}

func (c *gormCollection[T]) Delete(ctx context.Context, id string) error {
	res := c.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(c.resource, id)
	}
	return nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
