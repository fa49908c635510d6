package model

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusPaid          OrderStatus = "PAID"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
)

var ErrOrderAlreadySettled = errors.New("order already settled")

// PENDING以外は終端
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusPaymentFailed
}

// API上の表記
func (s OrderStatus) Display() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusPaid:
		return "Paid"
	case OrderStatusPaymentFailed:
		return "PaymentFailed"
	default:
		return string(s)
	}
}

type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64       `gorm:"not null;index" json:"user_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount Money       `gorm:"type:bigint;not null" json:"total_amount"`
	Items       []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt   time.Time   `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 明細から合計を再計算する。あふれたら ErrMoneyOverflow で TotalAmount は変えない
func (o *Order) RecalculateTotal() (Money, error) {
	var total Money
	for _, it := range o.Items {
		sub, err := it.Subtotal()
		if err != nil {
			return 0, err
		}
		if total, err = total.Add(sub); err != nil {
			return 0, err
		}
	}
	o.TotalAmount = total
	return total, nil
}

// 決済結果で状態を確定する。PENDINGからのみ遷移可能
func (o *Order) Settle(outcome PaymentOutcome) error {
	if o.Status != OrderStatusPending {
		return ErrOrderAlreadySettled
	}
	o.Status = outcome.Status()
	return nil
}

// 決済の結果（エラーとは別物）
type PaymentOutcome int

const (
	PaymentOutcomePaid PaymentOutcome = iota + 1
	PaymentOutcomeFailed
)

func OutcomeOf(settled bool) PaymentOutcome {
	if settled {
		return PaymentOutcomePaid
	}
	return PaymentOutcomeFailed
}

func (p PaymentOutcome) Status() OrderStatus {
	if p == PaymentOutcomePaid {
		return OrderStatusPaid
	}
	return OrderStatusPaymentFailed
}

func (p PaymentOutcome) String() string {
	return p.Status().Display()
}
