package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
)

// displayPlaceholder stands in for an order that has no display number.
const displayPlaceholder = "----"

// FormatDisplayNumber zero-pads a display number to four digits: 42 → "0042".
func FormatDisplayNumber(n *int) string {
	if n == nil {
		return displayPlaceholder
	}
	return fmt.Sprintf("%04d", *n)
}

// ParseDisplayNumber is the inverse of FormatDisplayNumber. It accepts an
// optional leading '#' and leading zeros ("#0042", "0042", "42") and reports
// false for anything that is not a number in [1, 9999].
func ParseDisplayNumber(text string) (int, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	s = strings.TrimLeft(s, "0")
	if s == "" || len(s) > 4 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < model.MinDisplayNumber || n > model.MaxDisplayNumber {
		return 0, false
	}
	return n, true
}

// FormatOrderNumber builds the legacy restaurant-prefixed order number,
// e.g. R12-0042.
func FormatOrderNumber(restaurantID int64, n int) string {
	return fmt.Sprintf("R%d-%04d", restaurantID, n)
}
