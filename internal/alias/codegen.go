package alias

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Alphabet is the base62 symbol set used for short codes, index 0 first.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultCodeLength is the starting code length for generated aliases.
const DefaultCodeLength = 7

const collisionRetries = 5

// ExistsFunc reports whether a candidate code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generate deterministically derives a base62 code of exactly length
// characters from seed. The same (seed, length) pair always yields the
// same code.
func Generate(seed string, length int) string {
	digest := sha256.Sum256([]byte(seed))

	// Each 8-byte digest slice is drained into base62 digits before the
	// next slice is consulted, so short codes depend only on the digest
	// prefix.
	digits := make([]byte, 0, length)
	for slice := 0; len(digits) < length && (slice+1)*8 <= len(digest); slice++ {
		n := binary.BigEndian.Uint64(digest[slice*8 : (slice+1)*8])
		digits = appendBase62(digits, n, length)
	}

	return finishCode(digits, length)
}

// EncodeBase62 converts n to a base62 string of exactly length characters,
// most significant symbol first, left-padded with '0'. Digits beyond length
// are dropped from the most significant end.
func EncodeBase62(n uint64, length int) string {
	return finishCode(appendBase62(make([]byte, 0, length), n, length), length)
}

// appendBase62 drains n into digits least-significant first, stopping at
// limit digits total.
func appendBase62(digits []byte, n uint64, limit int) []byte {
	for len(digits) < limit && n > 0 {
		digits = append(digits, Alphabet[n%62])
		n /= 62
	}

	return digits
}

// finishCode left-pads with '0' to length and reverses so the most
// significant symbol leads.
func finishCode(digits []byte, length int) string {
	for len(digits) < length {
		digits = append(digits, Alphabet[0])
	}

	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return string(digits)
}

// GenerateUnique produces a code not currently taken according to exists.
// The first candidate at each length is derived from the destination and
// owner alone; colliding candidates are re-salted with the clock and the
// attempt index. After five collisions at a given length the length grows
// by one and generation starts over, so the call never fails on collisions
// alone.
func GenerateUnique(
	ctx context.Context, destination, ownerID string, length int, exists ExistsFunc,
) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	for {
		for attempt := range collisionRetries {
			seed := destination + "|" + ownerID
			if attempt > 0 {
				seed = fmt.Sprintf("%s|%s|%d|%d", destination, ownerID, time.Now().UnixNano(), attempt)
			}

			code := Generate(seed, length)

			taken, err := exists(ctx, code)
			if err != nil {
				return "", err
			}

			if !taken {
				return code, nil
			}
		}

		length++
	}
}
