package isofmt

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxMessageIDLength is the Max35Text limit of MsgId.
const MaxMessageIDLength = 35

var (
	amountPattern = regexp.MustCompile(`^\d{1,18}(\.\d{1,5})?$`)
	bicPattern    = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

// ErrNotNumeric is returned by ParseAmount for values that are not numbers.
var ErrNotNumeric = errors.New("amount is not numeric")

// AmountFormatValid reports whether the magnitude of value has 1 to 18
// integer digits and at most 5 fractional digits. A leading sign is not
// part of the format; whether a negative amount is acceptable is decided
// by the caller.
func AmountFormatValid(value string) bool {
	return amountPattern.MatchString(unsigned(strings.TrimSpace(value)))
}

// ParseAmount parses value as a finite decimal number.
func ParseAmount(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotNumeric
	}
	return f, nil
}

// BICValid reports whether value is a well-formed BIC (8 or 11 characters).
func BICValid(value string) bool {
	return bicPattern.MatchString(value)
}

func unsigned(value string) string {
	if strings.HasPrefix(value, "-") || strings.HasPrefix(value, "+") {
		return value[1:]
	}
	return value
}

// CurrencySet is an allow-list of ISO 4217 alphabetic codes.
type CurrencySet map[string]struct{}

// NewCurrencySet builds a set from codes.
func NewCurrencySet(codes ...string) CurrencySet {
	s := make(CurrencySet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Contains reports whether code is allowed. Codes are case sensitive.
func (s CurrencySet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the allowed codes sorted alphabetically.
func (s CurrencySet) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// StandardCurrencies is the allow-list of the standard validation profile.
var StandardCurrencies = NewCurrencySet(
	"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY", "SEK", "NZD",
	"MXN", "SGD", "HKD", "NOK", "TRY", "RUB", "INR", "BRL", "ZAR", "KRW",
)

// SimplifiedCurrencies is the allow-list of the simplified validation profile.
var SimplifiedCurrencies = NewCurrencySet(
	"USD", "EUR", "GBP", "JPY", "CHF", "CAD", "AUD", "CNY", "CLP", "MXN", "BRL", "ARS",
)
