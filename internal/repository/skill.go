package repository

import (
	"context"

	"skillswap/internal/cache"
	"skillswap/internal/models"

	"gorm.io/gorm"
)

// SkillRepository stores marketplace offerings.
type SkillRepository interface {
	Collection[models.Skill]
	ListByOwner(ctx context.Context, userID string) ([]models.Skill, error)
	// ListByCategory lists every skill when category is empty.
	ListByCategory(ctx context.Context, category string) ([]models.Skill, error)
}

type skillRepository struct {
	Collection[models.Skill]
	db *gorm.DB
}

// NewSkillRepository returns a gorm-backed SkillRepository.
func NewSkillRepository(db *gorm.DB) SkillRepository {
	return &skillRepository{
		Collection: NewCollection[models.Skill](db, "Skill"),
		db:         db,
	}
}

func (r *skillRepository) Get(ctx context.Context, id string) (*models.Skill, error) {
	var skill models.Skill
	err := cache.Aside(ctx, cache.SkillKey(id), &skill, cache.SkillTTL, func() error {
		found, err := r.Collection.Get(ctx, id)
		if err != nil {
			return err
		}
		skill = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &skill, nil
}

func (r *skillRepository) ListByOwner(ctx context.Context, userID string) ([]models.Skill, error) {
	var skills []models.Skill
	if err := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&skills).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return skills, nil
}

func (r *skillRepository) ListByCategory(ctx context.Context, category string) ([]models.Skill, error) {
	var skills []models.Skill
	q := readDB(r.db).WithContext(ctx).Order("created_at DESC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&skills).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return skills, nil
}

func (r *skillRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := r.Collection.Update(ctx, id, fields); err != nil {
		return err
	}
	cache.InvalidateSkill(ctx, id)
	return nil
}

func (r *skillRepository) Delete(ctx context.Context, id string) error {
	if err := r.Collection.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateSkill(ctx, id)
	return nil
}
