package order

import (
	"math"
)

// Money is an amount in the smallest integer-scaled currency unit.
type Money int64

func (m Money) Int64() int64 {
	return int64(m)
}

func (m Money) Add(o Money) (Money, error) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, InvalidQuantity("amount out of range")
	}
	return m + o, nil
}

func (m Money) Times(n int) (Money, error) {
	if n < 0 || m < 0 {
		return 0, InvalidQuantity("negative amount")
	}
	if n == 0 || m == 0 {
		return 0, nil
	}
	if int64(m) > math.MaxInt64/int64(n) {
		return 0, InvalidQuantity("amount out of range")
	}
	return m * Money(n), nil
}
