package domain

import (
	"strconv"
	"strings"
)

// sizeUnitMultipliers maps unit suffixes (English and the Cyrillic forms
// seen on Russian-language trackers) to their 1024-based byte multiplier.
var sizeUnitMultipliers = map[string]int64{
	"b":   1,
	"б":   1,
	"kb":  1024,
	"кб":  1024,
	"mb":  1024 * 1024,
	"мб":  1024 * 1024,
	"gb":  1024 * 1024 * 1024,
	"гб":  1024 * 1024 * 1024,
	"tb":  1024 * 1024 * 1024 * 1024,
	"тб":  1024 * 1024 * 1024 * 1024,
}

// ParseHumanSize converts a human-readable size string such as "4.5 GB" or
// "1024 KB" into a byte count, using 1024-based unit multipliers. Returns 0
// if the string cannot be parsed.
func ParseHumanSize(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", ".")

	var unit string
	var numPart string
	lower := strings.ToLower(raw)
	for suffix := range sizeUnitMultipliers {
		if strings.HasSuffix(lower, suffix) {
			if len(suffix) > len(unit) {
				unit = suffix
				numPart = strings.TrimSpace(raw[:len(raw)-len(suffix)])
			}
		}
	}
	if unit == "" {
		numPart = strings.TrimSpace(raw)
		unit = "b"
	}

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0
	}
	return int64(value * float64(sizeUnitMultipliers[unit]))
}
