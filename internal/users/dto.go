package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/liminara/storefront/pkg/db/models"
	"github.com/liminara/storefront/pkg/enums"
)

// UserDTO is the profile shape returned by /api/auth/me.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       *string        `json:"email,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	Name        string         `json:"name"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"isActive"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email *string
	Phone *string
	Name  string
	Role  enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		Name:        u.Name,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		Email:    c.Email,
		Phone:    c.Phone,
		Name:     c.Name,
		Role:     role,
		IsActive: true,
	}
}
