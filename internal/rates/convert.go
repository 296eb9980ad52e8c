package rates

import (
	"log/slog"
	"math"
	"strings"

	"backoffice/internal/core"
)

// Source tells which path produced a converted amount.
type Source string

const (
	SourceIdentity    Source = "identity"
	SourceLive        Source = "live"
	SourceFallback    Source = "fallback"
	SourceUnconverted Source = "unconverted"
)

// Conversion is the detailed result of converting an amount.
type Conversion struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Source Source  `json:"source"`
}

// Convert converts amount from one currency to another through the base
// currency of rates. See ConvertDetailed.
func Convert(amount float64, from, to string, rates *core.ExchangeRateTable) float64 {
	return ConvertDetailed(amount, from, to, rates).Amount
}

// ConvertDetailed converts amount and reports how the result was obtained.
//
// Equal currencies return amount untouched. When rates holds both codes the
// amount goes through rates.Base. Otherwise the static table is used, which
// is only an approximation. When neither table knows a code, amount is
// returned unconverted. A non-finite amount is treated as 0. None of these
// cases is an error; degraded paths log a warning.
func ConvertDetailed(amount float64, from, to string, rates *core.ExchangeRateTable) Conversion {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		slog.Warn("Invalid amount for conversion, using 0", "amount", amount, "from", from, "to", to)
		amount = 0
	}

	c := Conversion{Amount: amount, From: from, To: to, Source: SourceIdentity}
	if from == to {
		return c
	}

	if v, ok := convertVia(amount, from, to, rates); ok {
		c.Amount, c.Source = v, SourceLive
		return c
	}

	if v, ok := convertVia(amount, from, to, staticTable); ok {
		slog.Warn("Exchange rate missing, using static fallback table",
			"from", from, "to", to, "live_rates", rates.Len())
		c.Amount, c.Source = v, SourceFallback
		return c
	}

	slog.Warn("No exchange rate for currency pair, amount left unconverted", "from", from, "to", to)
	c.Source = SourceUnconverted
	return c
}

func convertVia(amount float64, from, to string, t *core.ExchangeRateTable) (float64, bool) {
	fromRate, ok := t.Rate(from)
	if !ok {
		return 0, false
	}
	toRate, ok := t.Rate(to)
	if !ok {
		return 0, false
	}
	inBase := amount
	if from != t.Base {
		inBase = amount / fromRate
	}
	return inBase * toRate, true
}
