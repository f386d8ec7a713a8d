package util

import (
	"regexp"
	"strconv"
	"strings"
)

var reNumberToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseNumber reads a US-formatted number ("1,250", "$1,250.50", "900").
func ParseNumber(input string) (float64, bool) {
	token := strings.TrimSpace(input)
	token = strings.TrimPrefix(token, "$")
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	token = reNumberToken.FindString(token)
	if token == "" {
		return 0, false
	}
	token = strings.ReplaceAll(token, ",", "")
	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func ParseInt(input string) (int, bool) {
	f, ok := ParseNumber(input)
	if !ok {
		return 0, false
	}
	return int(f), true
}
