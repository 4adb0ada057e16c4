package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US $", "USD"},
	{"C $", "CAD"},
	{"AU $", "AUD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"₹", "INR"},
	{"¥", "JPY"},
	{"$", "USD"},
}

var (
	currencyCodePattern = regexp.MustCompile(`\b(USD|EUR|GBP|INR|JPY|CAD|AUD|CHF)\b`)
	amountPattern       = regexp.MustCompile(`\d[\d.,]*`)
)

// Price extracts the first amount in raw together with its currency code.
// For ranges such as "$10.00 to $20.00" the lower bound is returned.
func Price(raw string) (float64, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", false
	}

	currency := ""
	if m := currencyCodePattern.FindString(strings.ToUpper(raw)); m != "" {
		currency = m
	}
	if currency == "" {
		for _, cs := range currencySymbols {
			if strings.Contains(raw, cs.symbol) {
				currency = cs.code
				break
			}
		}
	}

	match := amountPattern.FindString(raw)
	if match == "" {
		return 0, currency, false
	}
	amount, ok := parseAmount(strings.TrimRight(match, ".,"))
	if !ok {
		return 0, currency, false
	}
	return amount, currency, true
}

// parseAmount accepts both 1,299.99 and 1.299,99 forms. The right-most
// separator is the decimal point unless it is followed by exactly three
// digits, in which case it groups thousands.
func parseAmount(s string) (float64, bool) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	decimalSep := byte(0)
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalSep = '.'
		} else {
			decimalSep = ','
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 && len(s)-lastDot-1 != 3 {
			decimalSep = '.'
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			decimalSep = ','
		}
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == decimalSep:
			b.WriteByte('.')
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
