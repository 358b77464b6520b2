// ABOUTME: Currency conversion over a base-relative rates table
// ABOUTME: Rates come from built-in defaults or a TOML file overriding them

package exchange

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrUnknownCurrency is returned for a currency code missing from the table.
var ErrUnknownCurrency = errors.New("unknown currency")

// DefaultBase is the currency the default table is expressed in.
const DefaultBase = "USD"

// Rates converts amounts between currencies. Each rate is the number of
// units of that currency equal to one unit of Base.
type Rates struct {
	base  string
	rates map[string]float64
}

// DefaultRates returns the built-in synthetic table relative to USD.
func DefaultRates() *Rates {
	r, _ := New(DefaultBase, map[string]float64{
		"USD": 1.0,
		"EUR": 0.92,
		"GBP": 0.79,
		"JPY": 147.0,
		"CAD": 1.35,
		"AUD": 1.52,
		"CHF": 0.86,
		"CNY": 7.25,
		"INR": 83.1,
		"BRL": 5.2,
	})
	return r
}

// New builds a table. Codes are normalized to upper case; every rate must be
// positive.
func New(base string, rates map[string]float64) (*Rates, error) {
	base = normalize(base)
	if base == "" {
		return nil, errors.New("base currency is required")
	}

	table := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		code = normalize(code)
		if code == "" {
			return nil, errors.New("empty currency code")
		}
		if rate <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %v", code, rate)
		}
		table[code] = rate
	}
	if rate, ok := table[base]; !ok {
		table[base] = 1
	} else if rate != 1 {
		return nil, fmt.Errorf("base currency %s must have rate 1, got %v", base, rate)
	}

	return &Rates{base: base, rates: table}, nil
}

// Base returns the base currency code.
func (r *Rates) Base() string {
	return r.base
}

// Currencies returns the supported codes in sorted order.
func (r *Rates) Currencies() []string {
	return slices.Sorted(maps.Keys(r.rates))
}

// Convert converts amount from one currency to another, going through the
// base currency for cross rates.
func (r *Rates) Convert(amount float64, from, to string) (float64, error) {
	from, to = normalize(from), normalize(to)
	if from == to {
		return amount, nil
	}

	fromRate, ok := r.rates[from]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := r.rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	switch {
	case from == r.base:
		return amount * toRate, nil
	case to == r.base:
		return amount / fromRate, nil
	default:
		return amount / fromRate * toRate, nil
	}
}

// ratesFile is the on-disk TOML layout:
//
//	base = "USD"
//	[rates]
//	EUR = 0.92
type ratesFile struct {
	Base  string             `toml:"base"`
	Rates map[string]float64 `toml:"rates"`
}

// LoadRates reads a TOML rates file. Entries override the defaults when the
// file uses the default base; a different base replaces the table entirely.
func LoadRates(path string) (*Rates, error) {
	var f ratesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decoding rates file: %w", err)
	}

	base := normalize(f.Base)
	if base == "" {
		base = DefaultBase
	}

	merged := make(map[string]float64)
	if base == DefaultBase {
		maps.Copy(merged, DefaultRates().rates)
	}
	for code, rate := range f.Rates {
		merged[normalize(code)] = rate
	}

	r, err := New(base, merged)
	if err != nil {
		return nil, fmt.Errorf("rates file %s: %w", path, err)
	}
	return r, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
