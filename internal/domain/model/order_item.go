package model

import "time"

// 注文明細。注文時点の価格を保存する
type OrderItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"not null;index" json:"order_id"`
	ProductID   int64     `gorm:"not null;index" json:"product_id"`
	ProductName string    `gorm:"type:varchar(255);not null" json:"product_name"`
	Price       Money     `gorm:"type:bigint;not null" json:"price"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	Size        string    `gorm:"type:varchar(20);not null" json:"size"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) Subtotal() (Money, error) {
	return it.Price.Mul(it.Quantity)
}
