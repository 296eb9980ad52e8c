package rates

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type displayStyle struct {
	locale language.Tag
	symbol string
	suffix bool
}

// displayStyles holds the customary locale and symbol of common currencies.
// Other valid ISO codes render in American English with the code as symbol.
var displayStyles = map[string]displayStyle{
	"USD": {language.AmericanEnglish, "$", false},
	"EUR": {language.German, "€", true},
	"GBP": {language.BritishEnglish, "£", false},
	"JPY": {language.Japanese, "¥", false},
	"CAD": {language.MustParse("en-CA"), "CA$", false},
	"AUD": {language.MustParse("en-AU"), "A$", false},
	"NZD": {language.MustParse("en-NZ"), "NZ$", false},
	"CHF": {language.MustParse("de-CH"), "CHF ", false},
	"CNY": {language.SimplifiedChinese, "¥", false},
	"INR": {language.MustParse("en-IN"), "₹", false},
	"MXN": {language.MustParse("es-MX"), "$", false},
	"SEK": {language.Swedish, "kr", true},
}

// Format renders amount in the customary style of code: locale grouping and
// decimal separators, and the currency's standard number of decimals (none
// for JPY, two for most). Codes that are not ISO 4217 fall back to
// "<code> <amount with two decimals>".
func Format(amount float64, code string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %.2f", symbolFor(code), amount)
	}
	scale, _ := currency.Standard.Rounding(unit)

	d := decimal.NewFromFloat(amount).Round(int32(scale))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	style, ok := displayStyles[code]
	if !ok {
		style = displayStyle{locale: language.AmericanEnglish, symbol: code + " "}
	}

	p := message.NewPrinter(style.locale)
	number := p.Sprintf(fmt.Sprintf("%%.%df", scale), d.InexactFloat64())

	if style.suffix {
		return sign + number + " " + style.symbol
	}
	return sign + style.symbol + number
}

func symbolFor(code string) string {
	if s, ok := displayStyles[code]; ok {
		return strings.TrimSpace(s.symbol)
	}
	if code == "" {
		return "¤"
	}
	return code
}
