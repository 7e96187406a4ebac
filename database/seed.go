package database

import (
	"context"
	"errors"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/model"
	"restaurant_order/repository"

	"go.uber.org/zap"
)

const DemoRestaurantId = "demo-restaurant"

func demoTables() []model.Table {
	return []model.Table{
		{ID: "demo-table-7", RestaurantId: DemoRestaurantId, Number: 7, Code: "A7F2", Capacity: 4, Status: model.TableAvailable},
		{ID: "demo-table-8", RestaurantId: DemoRestaurantId, Number: 8, Code: "B8C3", Capacity: 4, Status: model.TableAvailable},
		{ID: "demo-table-9", RestaurantId: DemoRestaurantId, Number: 9, Code: "C9D4", Capacity: 2, Status: model.TableAvailable},
	}
}

// SeedData creates the demo tables that do not exist yet.
func SeedData(ctx context.Context, store repository.Store, log *zap.Logger) error {
	now := time.Now().UTC()
	for _, table := range demoTables() {
		_, err := store.Tables().GetByCode(ctx, table.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		table.CreatedAt = now
		table.UpdatedAt = now
		if err := store.Tables().Create(ctx, &table); err != nil {
			log.Warn("failed to seed table", zap.String("code", table.Code), zap.Error(err))
			continue
		}
		log.Info("seeded table", zap.String("code", table.Code))
	}
	return nil
}
