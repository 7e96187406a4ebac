package service

import (
	"context"
	"fmt"

	"restaurant_order/apperror"
	"restaurant_order/model"
	"restaurant_order/repository"

	"go.uber.org/zap"
)

type TableDirectory struct {
	store repository.Store
	bus   Publisher
	clock Clock
	log   *zap.Logger
}

func NewTableDirectory(store repository.Store, bus Publisher, clock Clock, log *zap.Logger) *TableDirectory {
	if bus == nil {
		bus = noopPublisher{}
	}
	return &TableDirectory{store: store, bus: bus, clock: clock, log: log}
}

func (d *TableDirectory) GetByCode(ctx context.Context, code string) (*model.Table, error) {
	return d.store.Tables().GetByCode(ctx, NormalizeTableCode(code))
}

// SetStatus changes a table's floor status and tells the restaurant's staff.
func (d *TableDirectory) SetStatus(ctx context.Context, restaurantID, tableID string, status model.TableStatus) (*model.Table, error) {
	if !status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("Unknown table status %q", status))
	}
	table, err := d.store.Tables().Get(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if table.RestaurantId != restaurantID {
		return nil, apperror.TableNotFound()
	}
	if table.Status == status {
		return table, nil
	}

	now := d.clock.Now()
	if err := d.store.Tables().UpdateStatus(ctx, tableID, status, now); err != nil {
		return nil, err
	}
	table.Status = status
	table.UpdatedAt = now

	d.log.Info("table status changed", zap.String("table_id", tableID), zap.String("status", string(status)))
	d.bus.Publish(restaurantID, model.EventTableStatus, model.TableStatusPayload{TableId: tableID, Status: status})
	return table, nil
}
