package utils

import (
	"math"
	"strconv"
	"strings"
)

func Round(value float64) float64 {
	return math.Round(value*100) / 100
}

// FormatPrice renders a price as dollars with two decimals. Values that are
// not numbers are shown as the platform sent them.
func FormatPrice(price string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(price), "$"))
	if trimmed == "" {
		return ""
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return price
	}
	if value == 0 {
		return "Free"
	}
	return "$" + strconv.FormatFloat(Round(value), 'f', 2, 64)
}
