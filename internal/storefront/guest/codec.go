package guest

import (
	"context"
	"encoding/json"

	"github.com/liminara/storefront/internal/storefront/localstore"
	"github.com/liminara/storefront/pkg/logger"
)

// loadList decodes the JSON array stored under key. A missing key yields
// present=false. A value that does not decode is logged and treated as an
// empty list; only storage failures are returned.
func loadList[T any](ctx context.Context, store localstore.Storage, logg *logger.Logger, key string) ([]T, bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "guest.storage.malformed")
		return nil, true, nil
	}
	return items, true, nil
}

func saveList[T any](ctx context.Context, store localstore.Storage, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw)
}
