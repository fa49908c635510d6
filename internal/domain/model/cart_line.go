package model

// サイズ指定がないときの値
const DefaultSize = "N/A"

// 1行あたりの数量の上限
const MaxLineQuantity = 1000

// クライアントから来るカート行。価格は持たない（信用しない）
type CartLine struct {
	ProductID int64
	Quantity  int64
	Size      string
}

func (l CartLine) SizeOrDefault() string {
	if l.Size == "" {
		return DefaultSize
	}
	return l.Size
}
