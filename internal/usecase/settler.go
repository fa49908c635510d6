package usecase

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 決済してステータスを確定させる部分。CheckoutとReconcileで共通
type settler struct {
	orders   repo.OrderRepository
	payments PaymentGateway
	events   SettlementPublisher
	logger   *zap.Logger
}

func newSettler(orders repo.OrderRepository, payments PaymentGateway, events SettlementPublisher, logger *zap.Logger) *settler {
	return &settler{orders: orders, payments: payments, events: events, logger: logger}
}

// chargeAndSettle は PENDING の注文を決済し、PAID / PAYMENT_FAILED に1回だけ更新する。
// 確定後の注文を返す。エラーはDB失敗のときだけ
func (s *settler) chargeAndSettle(ctx context.Context, order model.Order) (model.Order, error) {
	paid := s.payments.Charge(ctx, order.TotalAmount, orderRef(order.ID))

	if err := order.Settle(model.OutcomeOf(paid)); err != nil {
		return model.Order{}, err
	}

	err := s.orders.SettleStatus(ctx, order.ID, order.Status)
	if errors.Is(err, repo.ErrNotFound) {
		//すでに別の処理が確定させていた。DBの値を正とする
		current, ferr := s.orders.FindByID(ctx, order.ID)
		if ferr != nil {
			return model.Order{}, ferr
		}
		s.logger.Warn("order already settled elsewhere",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(current.Status)),
		)
		return current, nil
	}
	if err != nil {
		s.logger.Error("settle order failed",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.Error(err),
		)
		return model.Order{}, err
	}

	s.logger.Info("order settled",
		zap.Int64("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)

	if s.events != nil {
		if err := s.events.PublishSettled(ctx, order); err != nil {
			s.logger.Warn("publish settled event failed", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}
	return order, nil
}
