package repository

import (
	"context"
	"errors"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/model"
	"restaurant_order/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Tables() TableStore     { return &gormTables{db: s.db} }
func (s *GormStore) Sessions() SessionStore { return &gormSessions{db: s.db} }
func (s *GormStore) Orders() OrderStore     { return &gormOrders{db: s.db} }
func (s *GormStore) Payments() PaymentStore { return &gormPayments{db: s.db} }

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

type gormTables struct {
	db *gorm.DB
}

func (r *gormTables) Create(ctx context.Context, table *model.Table) error {
	return r.db.WithContext(ctx).Create(table).Error
}

func (r *gormTables) Get(ctx context.Context, id string) (*model.Table, error) {
	var table model.Table
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&table).Error; err != nil {
		return nil, notFound(err, apperror.TableNotFound())
	}
	return &table, nil
}

func (r *gormTables) GetByCode(ctx context.Context, code string) (*model.Table, error) {
	var table model.Table
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&table).Error; err != nil {
		return nil, notFound(err, apperror.TableNotFound())
	}
	return &table, nil
}

func (r *gormTables) UpdateStatus(ctx context.Context, id string, status model.TableStatus, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Table{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.TableNotFound()
	}
	return nil
}

type gormSessions struct {
	db *gorm.DB
}

func (r *gormSessions) Create(ctx context.Context, session *model.CustomerSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *gormSessions) Get(ctx context.Context, token string) (*model.CustomerSession, error) {
	var session model.CustomerSession
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, notFound(err, apperror.SessionNotFound())
	}
	return &session, nil
}

func (r *gormSessions) Touch(ctx context.Context, token string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.CustomerSession{}).
		Where("token = ? AND status = ?", token, model.SessionActive).
		Update("last_activity_at", at).Error
}

func (r *gormSessions) Extend(ctx context.Context, token string, expiresAt, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.CustomerSession{}).
		Where("token = ? AND status = ?", token, model.SessionActive).
		Updates(map[string]any{"expires_at": expiresAt, "last_activity_at": at})
	return result.RowsAffected > 0, result.Error
}

func (r *gormSessions) MarkStatus(ctx context.Context, token string, status model.SessionStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.CustomerSession{}).
		Where("token = ? AND status = ?", token, model.SessionActive).
		Update("status", status)
	return result.RowsAffected > 0, result.Error
}

func (r *gormSessions) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.CustomerSession{}).
		Where("expires_at < ? AND swept_at IS NULL AND status IN ?", now,
			[]model.SessionStatus{model.SessionActive, model.SessionExpired}).
		Updates(map[string]any{"status": model.SessionExpired, "swept_at": now})
	return result.RowsAffected, result.Error
}

type gormOrders struct {
	db *gorm.DB
}

func (r *gormOrders) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		err := tx.Raw(`INSERT INTO order_counters (restaurant_id, value) VALUES (?, 1)
			ON CONFLICT (restaurant_id) DO UPDATE SET value = order_counters.value + 1
			RETURNING value`, order.RestaurantId).Scan(&seq).Error
		if err != nil {
			return err
		}
		order.Sequence = seq
		order.OrderNumber = FormatOrderNumber(seq)
		order.Version = 1
		return tx.Create(order).Error
	})
}

func (r *gormOrders) Get(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err, apperror.OrderNotFound(id))
	}
	return &order, nil
}

func (r *gormOrders) UpdateWithVersion(ctx context.Context, order *model.Order, expected int64) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&model.Order{}).
		Where("id = ? AND version = ?", order.ID, expected).
		Updates(map[string]any{
			"status":            order.Status,
			"payment_status":    order.PaymentStatus,
			"payment_reference": order.PaymentReference,
			"cancel_reason":     order.CancelReason,
			"updated_at":        order.UpdatedAt,
			"version":           expected + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&model.Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperror.OrderNotFound(order.ID)
		}
		return apperror.VersionConflict(order.ID)
	}
	order.Version = expected + 1
	return nil
}

func (r *gormOrders) List(ctx context.Context, restaurantID string, filter model.OrderFilter) ([]model.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("restaurant_id = ?", restaurantID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if len(filter.ExcludePaymentStatuses) > 0 {
		query = query.Where("payment_status NOT IN ?", filter.ExcludePaymentStatuses)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	if len(filter.ExcludeIds) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIds)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC, sequence DESC"
	if filter.Ascending {
		order = "created_at ASC, sequence ASC"
	}
	var orders []model.Order
	if err := utils.ApplyPagination(query.Order(order), filter.Limit, filter.Page).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

type gormPayments struct {
	db *gorm.DB
}

func (r *gormPayments) CreatePayment(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPayments) GetPayment(ctx context.Context, gatewayPaymentID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).First(&payment).Error; err != nil {
		return nil, notFound(err, apperror.PaymentNotFound(gatewayPaymentID))
	}
	return &payment, nil
}

func (r *gormPayments) UpdatePaymentStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus, refundID *string, at time.Time) error {
	updates := map[string]any{"status": status, "updated_at": at}
	if refundID != nil {
		updates["refund_id"] = *refundID
	}
	result := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.PaymentNotFound(gatewayPaymentID)
	}
	return nil
}

func (r *gormPayments) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.PaymentPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *gormPayments) GetEvent(ctx context.Context, gatewayPaymentID string) (*model.PaymentEvent, error) {
	var event model.PaymentEvent
	err := r.db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormPayments) InsertEvent(ctx context.Context, event *model.PaymentEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func notFound(err error, appErr *apperror.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErr
	}
	return err
}
