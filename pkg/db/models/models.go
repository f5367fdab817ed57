package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// dev and tests. Production schemas come from the goose migrations.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&CartItem{},
		&WishlistItem{},
	}
}
