package rates

import "backoffice/internal/core"

// staticTable is a rough USD-based table used when live rates are missing.
// The values are approximations and drift from real rates over time.
var staticTable = &core.ExchangeRateTable{
	Base: core.BaseCurrency,
	Rates: map[string]float64{
		"USD": 1,
		"EUR": 0.92,
		"GBP": 0.79,
		"JPY": 149.5,
		"CAD": 1.36,
		"AUD": 1.52,
		"NZD": 1.64,
		"CHF": 0.88,
		"CNY": 7.24,
		"INR": 83.2,
		"MXN": 17.1,
		"SEK": 10.5,
	},
}

// StaticRates returns a copy of the built-in approximate table.
func StaticRates() *core.ExchangeRateTable {
	return staticTable.Clone()
}
