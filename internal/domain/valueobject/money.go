package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
)

// DefaultCommissionRate доля партнёра от суммы заказа.
var DefaultCommissionRate = decimal.RequireFromString("0.10")

// Coins сумма в EcoCoins. Дробных монет нет.
type Coins int64

func NewPrice(amount int64) (Coins, error) {
	if amount <= 0 {
		return 0, apperror.New(apperror.ErrCodeValidation, "цена должна быть больше нуля")
	}
	return Coins(amount), nil
}

// ParseCommissionRate разбирает ставку вида "0.10". Допустимы значения от 0 до 1.
func ParseCommissionRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректная ставка комиссии")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "ставка комиссии должна быть в диапазоне [0, 1]")
	}
	return rate, nil
}

// Split доли выплаты по заказу. Seller + Commission == сумма заказа.
type Split struct {
	Seller     int64
	Commission int64
}

// SplitCommission делит сумму между продавцом и партнёром.
// Комиссия округляется вниз, остаток целиком уходит продавцу.
func SplitCommission(amount int64, rate decimal.Decimal, attributed bool) Split {
	if !attributed || amount <= 0 {
		return Split{Seller: amount}
	}
	commission := decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
	if commission > amount {
		commission = amount
	}
	return Split{Seller: amount - commission, Commission: commission}
}
