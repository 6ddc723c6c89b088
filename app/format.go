package app

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// FileStem turns a user supplied title into something safe to use as a
// download file name prefix
func FileStem(title, fallback string) string {
	title = strings.TrimSpace(title)
	var sb strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteByte('_')
		}
	}
	stem := strings.Trim(sb.String(), "._")
	if stem == "" {
		return fallback
	}
	return stem
}

// formatNumber renders a float for summaries without trailing zeros
func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
