// Package dbtest opens throwaway SQLite databases with the storefront schema.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/liminara/storefront/pkg/db/models"
)

// Open returns an isolated in-memory database migrated from the models. The
// connection is closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// MustCreateUser inserts a customer keyed by a unique email.
func MustCreateUser(t testing.TB, conn *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("shopper_%s@example.com", uuid.NewString())
	user := &models.User{Email: &email, IsActive: true}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// MustCreateProduct inserts an active product priced in cents.
func MustCreateProduct(t testing.TB, conn *gorm.DB, name string, priceCents int) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:        fmt.Sprintf("SKU-%s", uuid.NewString()),
		Name:       name,
		PriceCents: priceCents,
		IsActive:   true,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}
