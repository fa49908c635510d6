package usecase

import (
	"context"
	"time"

	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// ReconcileUsecase はPENDINGのまま残った注文を拾って決済をやり直す。
// PENDING保存と確定保存の間でプロセスが落ちた注文が対象。
// staleAfterは決済1回の最悪時間より長くすること（処理中の注文を拾わないため）
type ReconcileUsecase struct {
	orders     repo.OrderRepository
	settler    *settler
	logger     *zap.Logger
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func NewReconcileUsecase(
	orders repo.OrderRepository,
	payments PaymentGateway,
	events SettlementPublisher,
	logger *zap.Logger,
	staleAfter time.Duration,
	batchSize int,
) *ReconcileUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileUsecase{
		orders:     orders,
		settler:    newSettler(orders, payments, events, logger),
		logger:     logger,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Sweep は1回分の回収。確定できた件数を返す
func (u *ReconcileUsecase) Sweep(ctx context.Context) (int, error) {
	cutoff := u.now().Add(-u.staleAfter)

	stale, err := u.orders.ListStalePending(ctx, cutoff, u.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, o := range stale {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		u.logger.Warn("resuming stale pending order",
			zap.Int64("order_id", o.ID),
			zap.Time("created_at", o.CreatedAt),
		)
		// 同じ注文IDを参照にして決済する
		if _, err := u.settler.chargeAndSettle(ctx, o); err != nil {
			u.logger.Error("reconcile order failed", zap.Int64("order_id", o.ID), zap.Error(err))
			continue
		}
		settled++
	}
	return settled, nil
}

// Run はctxが終わるまでintervalごとにSweepする
func (u *ReconcileUsecase) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := u.Sweep(ctx)
			if err != nil {
				u.logger.Error("reconcile sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				u.logger.Info("reconcile sweep settled orders", zap.Int("count", n))
			}
		}
	}
}
