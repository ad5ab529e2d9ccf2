package utils

import (
	"math"
	"strconv"
)

const byteUnitSuffixes = "BKMGTPE"

// FormatFileSize renders a byte count the way du -h does: powers of 1024,
// rounded up, one decimal below ten.
func FormatFileSize(bytes int64) string {
	if bytes < 1024 {
		return strconv.FormatInt(max(bytes, 0), 10) + "B"
	}
	value := float64(bytes)
	exponent := 0
	for value >= 1024 && exponent < len(byteUnitSuffixes)-1 {
		value /= 1024
		exponent++
	}
	suffix := string(byteUnitSuffixes[exponent])
	if value < 10 {
		return strconv.FormatFloat(math.Ceil(value*10)/10, 'f', -1, 64) + suffix
	}
	return strconv.FormatFloat(math.Ceil(value), 'f', 0, 64) + suffix
}
