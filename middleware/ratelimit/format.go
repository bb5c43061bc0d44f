package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatSeconds trunca para segundos inteiros (Retry-After não aceita fração).
func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}
