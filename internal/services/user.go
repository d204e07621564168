package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pestops-bknd/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UserService struct {
	db *bun.DB
}

func NewUserService(db *bun.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) List(ctx context.Context, role models.Role) ([]models.User, error) {
	users := make([]models.User, 0)
	q := s.db.NewSelect().Model(&users).Order("name ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create adds a local account. Password may be empty for directory-only users.
func (s *UserService) Create(ctx context.Context, in models.UserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("email is required: %w", ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", in.Role, ErrInvalidInput)
	}

	exists, err := s.db.NewSelect().Model((*models.User)(nil)).Where("email = ?", email).Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("user %s: %w", email, ErrConflict)
	}

	now := time.Now().UTC()
	u := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Role:      in.Role,
		Provider:  "local",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if _, err := s.db.NewInsert().Model(u).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Update changes name, role or active flag. Role and active changes bump the
// token version so outstanding tokens stop working.
func (s *UserService) Update(ctx context.Context, id string, in models.UserUpdate) (*models.User, error) {
	var u models.User
	if err := s.db.NewSelect().Model(&u).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "user", id)
	}

	revoke := false
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil && *in.Role != u.Role {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("unknown role %q: %w", *in.Role, ErrInvalidInput)
		}
		u.Role = *in.Role
		revoke = true
	}
	if in.Active != nil && *in.Active != u.Active {
		u.Active = *in.Active
		revoke = true
	}
	if revoke {
		u.TokenVersion++
	}
	u.UpdatedAt = time.Now().UTC()

	_, err := s.db.NewUpdate().Model(&u).
		Column("name", "role", "active", "token_version", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return &u, nil
}
