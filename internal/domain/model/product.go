package model

import (
	"time"
)

// 商品。SKUはユニーク
type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Sku         string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       Money     `gorm:"type:bigint;not null" json:"price"`
	Category    string    `gorm:"type:varchar(100)" json:"category"`
	Gender      string    `gorm:"type:varchar(20)" json:"gender"`
	ImageURL    string    `gorm:"type:varchar(512)" json:"image_url"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
