package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// 外部決済。成功したかどうかだけを返し、エラーは返さない
type PaymentGateway interface {
	Charge(ctx context.Context, amount model.Money, orderRef string) bool
}

// 決済確定の通知（失敗しても注文には影響させない）
type SettlementPublisher interface {
	PublishSettled(ctx context.Context, order model.Order) error
}

type OrderUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	items    repo.OrderItemRepository
	settler  *settler
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	payments PaymentGateway,
	events SettlementPublisher,
	logger *zap.Logger,
) *OrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderUsecase{
		tx:       tx,
		orders:   orders,
		items:    items,
		settler:  newSettler(orders, payments, events, logger),
		logger:   logger,
		tracer:   otel.Tracer("storefront/order"),
		now:      time.Now,
	}
}

type CheckoutResult struct {
	OrderID     int64
	Outcome     model.PaymentOutcome
	TotalAmount model.Money
}

type OrderItemOutput struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"name"`
	Price     model.Money `json:"price"`
	Quantity  int64       `json:"quantity"`
	Size      string      `json:"size"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Status      string            `json:"status"`
	TotalAmount model.Money       `json:"total_amount"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []OrderItemOutput `json:"items"`
}

// Checkout はカートから注文を作り、決済して結果を確定させる。
// PENDINGの保存 → 決済 → 確定の保存 の順は入れ替えない。
// 決済失敗はエラーではなく Outcome=PaymentFailed として返す。
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, lines []model.CartLine) (CheckoutResult, error) {
	ctx, span := u.tracer.Start(ctx, "Checkout")
	defer span.End()

	if len(lines) == 0 {
		return CheckoutResult{}, wrapHTTPError(http.StatusBadRequest, ErrEmptyCart, "")
	}
	if userID <= 0 {
		return CheckoutResult{}, wrapHTTPError(http.StatusUnauthorized, ErrUnauthenticated, "")
	}
	span.SetAttributes(attribute.Int64("order.user_id", userID))

	for _, l := range lines {
		if l.Quantity <= 0 {
			return CheckoutResult{}, wrapHTTPError(http.StatusBadRequest, ErrInvalidCartLine, "quantity must be > 0")
		}
		if l.Quantity > model.MaxLineQuantity {
			return CheckoutResult{}, wrapHTTPError(http.StatusBadRequest, ErrInvalidCartLine,
				fmt.Sprintf("quantity must be <= %d", model.MaxLineQuantity))
		}
	}

	//価格の読み取りと注文・明細のPENDING保存を1トランザクションで行う
	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//価格はDBの値だけを使う
		resolved, err := u.resolve(ctx, r.Products(), userID, lines)
		if err != nil {
			return err
		}
		if resolved.TotalAmount <= 0 {
			return wrapHTTPError(http.StatusUnprocessableEntity, ErrUnprocessableOrder, "")
		}

		id, err := r.Orders().Create(ctx, resolved)
		if err != nil {
			return errDB(err)
		}
		if err := r.OrderItems().CreateBulk(ctx, id, resolved.Items); err != nil {
			return errDB(err)
		}
		resolved.ID = id
		order = resolved
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create pending order failed")
		if he, ok := AsHTTPError(err); ok {
			if he.Status >= http.StatusInternalServerError {
				u.logger.Error("persist pending order failed", zap.Int64("user_id", userID), zap.Error(err))
			}
			return CheckoutResult{}, he
		}
		u.logger.Error("persist pending order failed", zap.Int64("user_id", userID), zap.Error(err))
		return CheckoutResult{}, errDB(err)
	}
	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.total_amount", order.TotalAmount.String()),
	)
	u.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Stringer("total_amount", order.TotalAmount),
	)

	//PENDINGを保存したあとは呼び出し元のキャンセルに関係なく最後まで進める
	settled, err := u.settler.chargeAndSettle(context.WithoutCancel(ctx), order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle order failed")
		return CheckoutResult{}, errDB(err)
	}

	outcome := model.OutcomeOf(settled.Status == model.OrderStatusPaid)
	span.SetAttributes(attribute.String("order.payment_status", outcome.String()))

	return CheckoutResult{
		OrderID:     order.ID,
		Outcome:     outcome,
		TotalAmount: order.TotalAmount,
	}, nil
}

// カート行から注文（PENDING）を組み立てる。存在しない商品の行は捨てる
func (u *OrderUsecase) resolve(ctx context.Context, products repo.ProductRepository, userID int64, lines []model.CartLine) (model.Order, error) {
	order := model.Order{
		UserID:      userID,
		Status:      model.OrderStatusPending,
		TotalAmount: 0,
		Items:       make([]model.OrderItem, 0, len(lines)),
	}

	for _, l := range lines {
		p, err := products.FindByID(ctx, l.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			u.logger.Warn("product not found, dropping cart line",
				zap.Int64("user_id", userID),
				zap.Int64("product_id", l.ProductID),
			)
			continue
		}
		if err != nil {
			u.logger.Error("product lookup failed", zap.Int64("product_id", l.ProductID), zap.Error(err))
			return model.Order{}, errDB(err)
		}

		//スナップショット
		order.Items = append(order.Items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    l.Quantity,
			Size:        l.SizeOrDefault(),
			CreatedAt:   u.now(),
		})
	}

	if _, err := order.RecalculateTotal(); err != nil {
		u.logger.Warn("order total out of range", zap.Int64("user_id", userID), zap.Error(err))
		return model.Order{}, wrapHTTPError(http.StatusUnprocessableEntity, ErrUnprocessableOrder, "order total out of range")
	}
	return order, nil
}

// 自分の注文一覧（新しい順、明細つき）
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, wrapHTTPError(http.StatusUnauthorized, ErrUnauthenticated, "")
	}

	orders, err := u.orders.ListByUserID(ctx, userID)
	if err != nil {
		return []OrderOutput{}, errDB(err)
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemsByOrder, err := u.items.ListByOrderIDs(ctx, ids)
	if err != nil {
		return []OrderOutput{}, errDB(err)
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o, itemsByOrder[o.ID]))
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, wrapHTTPError(http.StatusUnauthorized, ErrUnauthenticated, "")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, wrapHTTPError(http.StatusNotFound, ErrNotFound, "")
	}
	if err != nil {
		return OrderOutput{}, errDB(err)
	}
	if o.UserID != userID {
		//他人の注文は「存在しない扱い」にする
		return OrderOutput{}, wrapHTTPError(http.StatusNotFound, ErrNotFound, "")
	}

	items, err := u.items.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, errDB(err)
	}
	return toOrderOutput(o, items), nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      o.Status.Display(),
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		Items:       outItems,
	}
}

func orderRef(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}
