// Package core provides money parsing and handling utilities.
//
// Amounts are exact signed decimals. Floats only appear at the input
// boundary and are rejected when not finite.
package core

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPolicy decides which amounts the ledger accepts.
type AmountPolicy string

const (
	AllowAnyAmount  AmountPolicy = "any"
	RequireNonZero  AmountPolicy = "nonzero"
	RequirePositive AmountPolicy = "positive"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNonFiniteAmount = errors.New("amount is not a finite number")
	ErrZeroAmount      = errors.New("amount must not be zero")
	ErrNegativeAmount  = errors.New("amount must be positive")
	ErrAmountRange     = errors.New("amount out of range")
	ErrAmbiguousAmount = errors.New("ambiguous amount: use a dot or comma for decimals, not thousands")
)

// Bounds on amounts the ledger stores.
const (
	maxAmountIntDigits = 15
	maxAmountScale     = 8
	maxAmountInputLen  = 32
)

// AmountPolicies returns all valid policies.
func AmountPolicies() []AmountPolicy {
	return []AmountPolicy{AllowAnyAmount, RequireNonZero, RequirePositive}
}

func (p AmountPolicy) IsValid() bool {
	switch p {
	case AllowAnyAmount, RequireNonZero, RequirePositive:
		return true
	default:
		return false
	}
}

// Check returns a ValidationError when amount is not allowed by p.
// An empty policy behaves like AllowAnyAmount.
func (p AmountPolicy) Check(amount decimal.Decimal) error {
	switch p {
	case RequireNonZero:
		if amount.IsZero() {
			return &ValidationError{Field: "amount", Err: ErrZeroAmount}
		}
	case RequirePositive:
		if !amount.IsPositive() {
			return &ValidationError{Field: "amount", Err: ErrNegativeAmount}
		}
	case AllowAnyAmount, "":
	default:
		return fmt.Errorf("unknown amount policy %q", string(p))
	}
	return nil
}

// ParseAmount converts user input to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. There is no thousands separator, so a comma
// followed by exactly three digits (1,000) is rejected as ambiguous.
// Exponent forms, NaN, Inf, blank input and garbage are rejected, as are
// amounts outside CheckAmountRange.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("-3,5")   -> -3.5, nil
//	ParseAmount("1,000")  -> error
//	ParseAmount("1e9")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountInputLen {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrNonFiniteAmount}
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}

	if i := strings.IndexByte(s, ','); i >= 0 {
		frac := s[i+1:]
		if strings.Contains(s, ".") || strings.Contains(frac, ",") {
			return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
		}
		if len(frac) == 3 {
			return decimal.Zero, &ValidationError{Field: "amount", Err: ErrAmbiguousAmount}
		}
		s = s[:i] + "." + frac
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if err := CheckAmountRange(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmountRange rejects amounts with more than 15 integer digits or more
// than 8 decimal places. It only inspects the exponent and coefficient, so
// it is safe on values that would be too large to render.
func CheckAmountRange(d decimal.Decimal) error {
	coeff := d.Coefficient()
	if coeff.Sign() == 0 {
		return nil
	}
	exp := int64(d.Exponent())
	// 128 bits covers every in-range coefficient with room for trailing zeros.
	if exp > maxAmountIntDigits || coeff.BitLen() > 128 {
		return &ValidationError{Field: "amount", Err: ErrAmountRange}
	}

	digits := int64(len(coeff.Abs(coeff).String()))
	// Trailing zeros in the coefficient do not add precision.
	for exp < 0 && coeff.Cmp(bigTen) >= 0 && new(big.Int).Rem(coeff, bigTen).Sign() == 0 {
		coeff.Quo(coeff, bigTen)
		exp++
		digits--
	}
	if -exp > maxAmountScale || digits+exp > maxAmountIntDigits {
		return &ValidationError{Field: "amount", Err: ErrAmountRange}
	}
	return nil
}

var bigTen = big.NewInt(10)

// AmountFromFloat converts a float amount, rejecting NaN and infinities.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrNonFiniteAmount}
	}
	d := decimal.NewFromFloat(f)
	if err := CheckAmountRange(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// FormatAmount renders an amount with two decimal places for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
