package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/liminara/storefront/pkg/enums"
)

// User represents a shopper, admin, or delivery agent identity. Accounts are
// keyed by the identifier the OTP was sent to, so exactly one of Email or
// Phone is set at creation time.
type User struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email       *string        `gorm:"column:email;type:text;uniqueIndex:users_email_key"`
	Phone       *string        `gorm:"column:phone;type:text;uniqueIndex:users_phone_key"`
	Name        string         `gorm:"column:name;not null;default:''"`
	Role        enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt *time.Time     `gorm:"column:last_login_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = enums.UserRoleCustomer
	}
	return nil
}
