package service

import (
	"context"
	"strings"

	"skillswap/internal/models"
	"skillswap/internal/repository"
)

// SkillService manages marketplace offerings.
type SkillService struct {
	skills repository.SkillRepository
	users  repository.UserRepository
}

// CreateSkillInput is the input for listing a new skill.
type CreateSkillInput struct {
	OwnerID     string
	Title       string
	Description string
	Rate        float64
	Category    string
}

// UpdateSkillInput is a partial update; nil fields are left unchanged.
type UpdateSkillInput struct {
	SkillID     string
	ActorID     string
	Title       *string
	Description *string
	Rate        *float64
	Category    *string
}

func NewSkillService(skills repository.SkillRepository, users repository.UserRepository) *SkillService {
	return &SkillService{skills: skills, users: users}
}

func (s *SkillService) Create(ctx context.Context, in CreateSkillInput) (*models.Skill, error) {
	owner, err := s.users.Get(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.Role != models.RoleMentor {
		return nil, models.NewForbiddenError("Only mentors can list skills")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if in.Rate < 0 {
		return nil, models.NewValidationError("Rate must not be negative")
	}
	category, ok := models.CanonicalCategory(in.Category)
	if !ok {
		return nil, models.NewValidationError("Unknown category")
	}

	skill := &models.Skill{
		UserID:      owner.ID,
		Title:       title,
		Description: in.Description,
		Rate:        in.Rate,
		Category:    category,
	}
	if err := s.skills.Put(ctx, skill); err != nil {
		return nil, err
	}
	return skill, nil
}

func (s *SkillService) Get(ctx context.Context, id string) (*models.Skill, error) {
	return s.skills.Get(ctx, id)
}

// List returns every skill, or those in category when it is set.
func (s *SkillService) List(ctx context.Context, category string) ([]models.Skill, error) {
	if category == "" {
		return s.skills.ListByCategory(ctx, "")
	}
	canonical, ok := models.CanonicalCategory(category)
	if !ok {
		return nil, models.NewValidationError("Unknown category")
	}
	return s.skills.ListByCategory(ctx, canonical)
}

func (s *SkillService) ListByOwner(ctx context.Context, userID string) ([]models.Skill, error) {
	return s.skills.ListByOwner(ctx, userID)
}

func (s *SkillService) Categories() []string {
	return models.SkillCategories()
}

func (s *SkillService) Update(ctx context.Context, in UpdateSkillInput) (*models.Skill, error) {
	skill, err := s.ownedSkill(ctx, in.SkillID, in.ActorID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("Title is required")
		}
		fields["title"] = title
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Rate != nil {
		if *in.Rate < 0 {
			return nil, models.NewValidationError("Rate must not be negative")
		}
		fields["rate"] = *in.Rate
	}
	if in.Category != nil {
		category, ok := models.CanonicalCategory(*in.Category)
		if !ok {
			return nil, models.NewValidationError("Unknown category")
		}
		fields["category"] = category
	}
	if len(fields) == 0 {
		return skill, nil
	}
	if err := s.skills.Update(ctx, skill.ID, fields); err != nil {
		return nil, err
	}
	return s.skills.Get(ctx, skill.ID)
}

func (s *SkillService) Delete(ctx context.Context, skillID, actorID string) error {
	skill, err := s.ownedSkill(ctx, skillID, actorID)
	if err != nil {
		return err
	}
	return s.skills.Delete(ctx, skill.ID)
}

func (s *SkillService) ownedSkill(ctx context.Context, skillID, actorID string) (*models.Skill, error) {
	skill, err := s.skills.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if skill.UserID != actorID {
		return nil, models.NewForbiddenError("You can only modify your own skills")
	}
	return skill, nil
}
