package utils

import (
	"fmt"
	"strings"
)

// FormatVND formats an integer VND amount with dot thousand separators.
// Example: 250000 -> "250.000 VND"
func FormatVND(amount int64) string {
	digits := fmt.Sprintf("%d", amount)
	negative := false
	if strings.HasPrefix(digits, "-") {
		negative = true
		digits = digits[1:]
	}

	var groups []string
	for i := len(digits); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{digits[start:i]}, groups...)
	}

	formatted := strings.Join(groups, ".")
	if negative {
		formatted = "-" + formatted
	}
	return formatted + " VND"
}
