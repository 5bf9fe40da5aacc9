package mutation

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	idSuffixLen = 8
	// digits and uppercase letters without I and O
	idAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// NewID returns "<unix millis>-<random suffix>". The suffix falls back to
// uuid bits if the system random source fails.
func NewID(now time.Time) string {
	suffix, err := randomSuffix(idSuffixLen)
	if err != nil {
		suffix = uuid.NewString()[:idSuffixLen]
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf), nil
}
