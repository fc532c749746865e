package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseMarketCap converts a human-formatted market cap fragment such as
// "250K", "$1.5M" or "💰 市值: 3B" into a plain dollar value. Returns 0 for
// input that cannot be parsed; callers treat 0 as "not available".
func ParseMarketCap(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	// Strip decorations commonly attached by channel bots
	for _, prefix := range []string{"💰", "市值", "Market Cap", "market cap", "MC", "Mc", "mc"} {
		s = strings.ReplaceAll(s, prefix, "")
	}
	s = strings.NewReplacer(":", "", "：", "", "*", "", "$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = 1e3
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1e6
		s = s[:len(s)-1]
	case 'B', 'b':
		multiplier = 1e9
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	return value * multiplier
}

// FormatMarketCap renders a dollar value back into the compact K/M/B form
// used in reports and log lines
func FormatMarketCap(value float64) string {
	switch {
	case value >= 1e9:
		return fmt.Sprintf("%.2fB", value/1e9)
	case value >= 1e6:
		return fmt.Sprintf("%.2fM", value/1e6)
	case value >= 1e3:
		return fmt.Sprintf("%.2fK", value/1e3)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}
