package repository

import (
	"context"
	"errors"
	"time"

	"storefront-payments/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	// UpdateByGatewayOrderID applies updates to the row for gatewayOrderID,
	// skipping rows whose status is in excludeStatuses. Returns the number
	// of rows affected; zero is not an error.
	UpdateByGatewayOrderID(ctx context.Context, tx *gorm.DB, gatewayOrderID string, excludeStatuses []string, updates map[string]interface{}) (int64, error)
	// InsertIgnoreDuplicate inserts the order unless a row for its
	// gatewayOrderID already exists. Reports whether a row was inserted.
	InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, order *model.Order) (bool, error)
	FindByCustomerEmail(ctx context.Context, emailCanonical string) ([]*model.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) UpdateByGatewayOrderID(ctx context.Context, tx *gorm.DB, gatewayOrderID string, excludeStatuses []string, updates map[string]interface{}) (int64, error) {
	updates["updated_at"] = time.Now()

	q := tx.WithContext(ctx).Model(&model.Order{}).
		Where("gateway_order_id = ?", gatewayOrderID)
	if len(excludeStatuses) > 0 {
		q = q.Where("status NOT IN ?", excludeStatuses)
	}

	result := q.Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *orderRepoImpl) InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, order *model.Order) (bool, error) {
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_order_id"}},
		DoNothing: true,
	}).Create(order)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) FindByCustomerEmail(ctx context.Context, emailCanonical string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("customer_email_canonical = ?", emailCanonical).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}
