package service

import (
	"context"
	"errors"
	"strings"

	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// UserService handles registration, authentication and profiles.
type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

// RegisterInput is the input for creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Bio      string
}

// UpdateProfileInput carries the editable profile fields. Empty values are left unchanged.
type UpdateProfileInput struct {
	UserID string
	Name   string
	Bio    string
}

// NewUserService returns a UserService hashing passwords at bcrypt.DefaultCost.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

// Register creates an account. A taken email is a CONFLICT.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = models.RoleStudent
	}

	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password, in.Name, in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !in.Role.Valid() {
		return nil, models.NewValidationError("role must be mentor or student")
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: string(hash),
		Role:     in.Role,
		Bio:      in.Bio,
	}
	if err := s.userRepo.Put(ctx, user); err != nil {
		if models.ErrorCode(err) == models.CodeConflict {
			return nil, models.NewConflictError("Email already registered", nil)
		}
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password look the same to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.Get(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	const maxBioLen = 500

	fields := map[string]any{}
	if name := strings.TrimSpace(in.Name); name != "" {
		if err := validation.ValidateName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["name"] = name
	}
	if in.Bio != "" {
		if len(in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		fields["bio"] = in.Bio
	}
	if len(fields) > 0 {
		if err := s.userRepo.Update(ctx, in.UserID, fields); err != nil {
			return nil, err
		}
	}
	return s.userRepo.Get(ctx, in.UserID)
}

// SetRole switches a user between mentor and student.
func (s *UserService) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return models.NewValidationError("role must be mentor or student")
	}
	return s.userRepo.Update(ctx, userID, map[string]any{"role": role})
}

func (s *UserService) ListMentors(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListByRole(ctx, models.RoleMentor)
}
