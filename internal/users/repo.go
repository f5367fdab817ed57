package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/liminara/storefront/pkg/db"
	"github.com/liminara/storefront/pkg/db/models"
	"github.com/liminara/storefront/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIdentifier looks a user up by email or phone, whichever the
// identifier is.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	column := "phone"
	if enums.ChannelForIdentifier(identifier) == enums.OTPChannelEmail {
		column = "email"
	}
	var user models.User
	if err := r.db.WithContext(ctx).Where(column+" = ?", identifier).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateByIdentifier returns the account for identifier, creating a
// customer on first login. A concurrent create for the same identifier is
// resolved by re-reading the winner.
func (r *Repository) FindOrCreateByIdentifier(ctx context.Context, identifier string) (*models.User, bool, error) {
	identifier = strings.TrimSpace(identifier)
	user, err := r.FindByIdentifier(ctx, identifier)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	dto := CreateUserDTO{Role: enums.UserRoleCustomer}
	if enums.ChannelForIdentifier(identifier) == enums.OTPChannelEmail {
		dto.Email = &identifier
	} else {
		dto.Phone = &identifier
	}
	created, err := r.Create(ctx, dto)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			existing, findErr := r.FindByIdentifier(ctx, identifier)
			return existing, false, findErr
		}
		return nil, false, err
	}
	return created, true, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdateRole changes the user's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("role", role).Error
}
