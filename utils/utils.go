package utils

import (
	"crypto/md5"
	"strings"

	"github.com/gofrs/uuid"
)

// GenUuidFromStrings derives a deterministic UUID from the given parts.
// Order matters: (loan, collateral) and (collateral, loan) must not
// address the same market.
func GenUuidFromStrings(parts ...string) string {
	if len(parts) == 0 {
		parts = append(parts, "00000000-0000-0000-0000-000000000000")
	}

	return uuidHash([]byte(strings.Join(parts, "|")))
}

func uuidHash(b []byte) string {
	h := md5.New()

	h.Write(b)
	sum := h.Sum(nil)
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum).String()
}
