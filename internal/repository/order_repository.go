package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// PENDINGの注文だけを更新する。対象がなければ ErrNotFound
	SettleStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	// olderThanより前に作られて PENDING のまま残っている注文
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error)
}
