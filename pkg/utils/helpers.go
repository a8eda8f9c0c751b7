package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// RandomHex returns 2n hex characters of randomness. If the system source
// fails it falls back to the current time so callers always get an id.
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}
