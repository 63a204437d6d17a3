// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount возвращается, если сумма не является положительным числом.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// centsPlaces задаёт точность отображения сумм в долларах.
const centsPlaces = 2

// ParseUSD разбирает сумму в долларах. Допускается запятая в качестве десятичного разделителя.
// Сумма не округляется: минимум и пересчёт в баллы применяются к точному значению.
func ParseUSD(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.Replace(raw, ",", ".", 1))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	return d, nil
}

// PointsFor переводит сумму в баллы по курсу: floor(amount * rate).
func PointsFor(amount decimal.Decimal, rate int64) int64 {
	return amount.Mul(decimal.NewFromInt(rate)).Floor().IntPart()
}

// FormatUSD форматирует сумму с центами, не теряя более мелких знаков.
func FormatUSD(amount decimal.Decimal) string {
	if amount.Equal(amount.Round(centsPlaces)) {
		return amount.StringFixed(centsPlaces)
	}
	return amount.String()
}
