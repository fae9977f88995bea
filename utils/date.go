package utils

import (
	"strings"
	"time"
)

var billingLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatBillingDate turns a provider timestamp into a short date. Unknown
// formats are returned unchanged.
func FormatBillingDate(value string) string {
	value = strings.TrimSpace(value)
	for _, layout := range billingLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return value
}
