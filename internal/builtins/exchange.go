// ABOUTME: Exchange pack: exchange_convert over the configured rates table
// ABOUTME: Protected tool; unknown currencies are reported as conversion_failed

package builtins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/exchange"
	"github.com/2389/books-mcp/internal/packs"
)

// ExchangePack creates the currency exchange pack. A nil clock means time.Now.
func ExchangePack(rates *exchange.Rates, now func() time.Time) *packs.BuiltinPack {
	if now == nil {
		now = time.Now
	}
	e := &exchangeHandlers{rates: rates, now: now}
	return &packs.BuiltinPack{
		ID: "builtin:exchange",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:            "exchange_convert",
					Description:     "Convert an amount between currencies (" + strings.Join(rates.Currencies(), ", ") + "). Requires an active session.",
					InputSchemaJSON: `{"type":"object","properties":{"from_currency":{"type":"string","description":"Source currency code, e.g. USD"},"to_currency":{"type":"string","description":"Target currency code, e.g. EUR"},"amount":{"type":["number","string"],"description":"Amount to convert"}},"required":["from_currency","to_currency","amount"],"additionalProperties":false}`,
					Access:          auth.AccessProtected,
					Audited:         true,
				},
				Handler: e.Convert,
			},
		},
	}
}

type exchangeHandlers struct {
	rates *exchange.Rates
	now   func() time.Time
}

func (e *exchangeHandlers) Convert(_ context.Context, call packs.Call) (packs.Payload, error) {
	from, err := call.Args.RequireString("from_currency")
	if err != nil {
		return nil, err
	}
	to, err := call.Args.RequireString("to_currency")
	if err != nil {
		return nil, err
	}
	amount, err := call.Args.RequireNumber("amount")
	if err != nil {
		return nil, err
	}

	converted, err := e.rates.Convert(amount, from, to)
	if errors.Is(err, exchange.ErrUnknownCurrency) {
		return nil, &packs.Failure{
			Kind:    packs.KindConversionFailed,
			Message: fmt.Sprintf("Conversion failed: %v", err),
			Hint:    "Supported currencies: " + strings.Join(e.rates.Currencies(), ", "),
			Extra: packs.Payload{
				"attempted_conversion": fmt.Sprintf("%s %s -> %s", strconv.FormatFloat(amount, 'f', -1, 64), from, to),
			},
		}
	}
	if err != nil {
		return nil, err
	}

	return packs.Payload{
		"from":      strings.ToUpper(strings.TrimSpace(from)),
		"to":        strings.ToUpper(strings.TrimSpace(to)),
		"amount":    amount,
		"converted": converted,
		"operation": "currency_conversion",
		"timestamp": float64(e.now().UnixMilli()) / 1000,
	}, nil
}
