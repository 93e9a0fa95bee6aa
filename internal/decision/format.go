package decision

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatAmount renders amount with thousands separators and the currency
// symbol. Unknown currency codes are used as a prefix; empty means INR.
func FormatAmount(amount float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "INR"
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}

	cents := int64(math.Round(math.Abs(amount) * 100))
	sign := ""
	if amount < 0 && cents > 0 {
		sign = "-"
	}
	whole := humanize.Comma(cents / 100)
	if frac := cents % 100; frac != 0 {
		return fmt.Sprintf("%s%s%s.%02d", sign, symbol, whole, frac)
	}
	return sign + symbol + whole
}

// Summary is the one-line verdict shown to users.
func Summary(d Decision, currency string) string {
	if d.Outcome == Approved {
		amount := "undetermined"
		if d.Amount != nil {
			amount = FormatAmount(*d.Amount, currency)
		}
		return fmt.Sprintf("✅ CLAIM APPROVED - Amount: %s | %s", amount, d.Justification)
	}
	return fmt.Sprintf("❌ CLAIM REJECTED - %s", d.Justification)
}
