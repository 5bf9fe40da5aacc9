package utils

import (
	"strings"

	"github.com/google/uuid"
)

const maskVisible = 4

// MaskSecret keeps the first few characters of s for log lines.
func MaskSecret(s string) string {
	if len(s) <= maskVisible {
		return "*****"
	}
	return s[:maskVisible] + "*****"
}

// TokenHex returns a random 32 character hex token.
func TokenHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
