package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/shopspring/decimal"
)

// 金額（最小通貨単位。2桁固定小数点）
// 例: 10.50 -> Money(1050)
// DBにはbigintで保存し、計算・表示・パースはdecimalで行う
type Money int64

const moneyScale = 2

var (
	ErrInvalidMoney  = errors.New("invalid money")
	ErrMoneyOverflow = errors.New("money out of range")
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)

	// 符号は先頭の"-"だけ。小数は2桁まで
	moneyPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]{1,2})?$`)
)

func NewMoney(units int64, cents int64) Money {
	return Money(units*100 + cents)
}

// Decimal は 10.50 のような値を返す
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyScale)
}

// 最小単位のdecimalをMoneyに戻す。int64に収まらなければエラー
func fromMinor(d decimal.Decimal) (Money, error) {
	if !d.IsInteger() {
		return 0, ErrInvalidMoney
	}
	if d.GreaterThan(maxMinor) || d.LessThan(minMinor) {
		return 0, ErrMoneyOverflow
	}
	return Money(d.IntPart()), nil
}

// Mulは数量を掛ける。あふれたら ErrMoneyOverflow
func (m Money) Mul(qty int64) (Money, error) {
	return fromMinor(decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(qty)))
}

// Addはあふれたら ErrMoneyOverflow
func (m Money) Add(o Money) (Money, error) {
	return fromMinor(decimal.NewFromInt(int64(m)).Add(decimal.NewFromInt(int64(o))))
}

func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// JSONでは 21.00 のような数値で返す
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// 数値でも文字列でも受ける
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoneyは "10.5" / "10.50" / "10" / "-3.20" を受け付ける。
// "+3" や "1e3"、小数3桁以上はエラー
func ParseMoney(s string) (Money, error) {
	if !moneyPattern.MatchString(s) {
		return 0, ErrInvalidMoney
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidMoney
	}
	v, err := fromMinor(d.Shift(moneyScale))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMoney, err)
	}
	return v, nil
}
