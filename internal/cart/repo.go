package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/liminara/storefront/pkg/db/models"
)

// MaxQuantity is the largest quantity a single line can hold.
const MaxQuantity = 999

// Repository persists per-user cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddQuantity inserts a line for the product or increments the existing one
// in a single statement, capping the line at MaxQuantity. The bool reports
// whether a new line was created.
func (r *Repository) AddQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartItem, bool, error) {
	qty = min(qty, MaxQuantity)
	candidate := &models.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}
	capped := gorm.Expr(
		"CASE WHEN cart_items.quantity + ? > ? THEN ? ELSE cart_items.quantity + ? END",
		qty, MaxQuantity, MaxQuantity, qty,
	)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   capped,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Omit("Product").
		Create(candidate).Error
	if err != nil {
		return nil, false, err
	}

	stored, err := r.FindByUserAndProduct(ctx, userID, productID)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.ID == candidate.ID, nil
}

// FindByUserAndProduct loads the line for a product with its product row.
func (r *Repository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDAndUser loads a line owned by the user.
func (r *Repository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ? AND user_id = ?", id, userID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByUser returns the user's lines in the order they were first added.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateQuantity sets the quantity on a line owned by the user.
func (r *Repository) UpdateQuantity(ctx context.Context, id, userID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// Delete removes a line owned by the user.
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
