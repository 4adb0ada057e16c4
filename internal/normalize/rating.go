package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ratingPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:/|out\s+of|of)\s*(\d+(?:[.,]\d+)?)`)
	numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// Rating reads a star rating and scales it to 0..5. Accepted shapes:
// "4.5 out of 5 stars", "4,5/5", "8/10", "★★★★☆" and a bare number.
func Rating(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if m := ratingPattern.FindStringSubmatch(raw); m != nil {
		value, ok1 := parseDecimal(m[1])
		scale, ok2 := parseDecimal(m[2])
		if ok1 && ok2 && scale > 0 {
			return clampRating(value * 5 / scale), true
		}
	}

	if stars := strings.Count(raw, "★"); stars > 0 {
		return clampRating(float64(stars)), true
	}

	if m := numberPattern.FindString(raw); m != "" {
		if v, ok := parseDecimal(m); ok {
			return clampRating(v), true
		}
	}
	return 0, false
}

func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}
