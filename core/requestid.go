package core

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const requestIDLength = 20

// NewRequestID returns the per-client X-Bunq-Client-Request-Id value: a
// string of 20 random decimal digits.
func NewRequestID() string {
	var builder strings.Builder
	builder.Grow(requestIDLength)
	ten := big.NewInt(10)
	for i := 0; i < requestIDLength; i++ {
		digit, err := rand.Int(rand.Reader, ten)
		if err != nil {
			builder.WriteByte('0')
			continue
		}
		builder.WriteByte(byte('0' + digit.Int64()))
	}
	return builder.String()
}
