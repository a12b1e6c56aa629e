package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"time"
)

// KeySize is the length in bytes of a Key.
const KeySize = 12

// Key is a 12-byte sortable identifier whose leading four bytes hold a
// big-endian Unix timestamp in seconds.
//
// Keys order by byte comparison, which matches numeric order of the
// 96-bit unsigned integer they encode. Arithmetic (Sub, Add) operates on
// that integer.
type Key [KeySize]byte

// Rounding selects which end of a timestamp's key range KeyFromTime produces.
type Rounding int

const (
	// RoundMin produces the smallest key carrying the timestamp.
	RoundMin Rounding = iota + 1

	// RoundMax produces the largest key carrying the timestamp.
	RoundMax
)

// String returns the rounding name.
func (r Rounding) String() string {
	switch r {
	case RoundMin:
		return "min"
	case RoundMax:
		return "max"
	default:
		return fmt.Sprintf("rounding(%d)", int(r))
	}
}

var (
	// MinKey is the lowest key of the keyspace.
	MinKey = Key{}

	// MaxKey is the highest key of the keyspace.
	MaxKey = Key{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	maxKeyInt = new(big.Int).SetBytes(MaxKey[:])
)

// KeyFromTime derives the key range boundary for the given timestamp.
//
// The timestamp is truncated to whole seconds. RoundMin fills the eight
// trailing bytes with 0x00, RoundMax with 0xff, so that for any t
// KeyFromTime(t, RoundMin) < KeyFromTime(t, RoundMax).
//
// Parameters:
//   - t: Timestamp to encode (must fit an unsigned 32-bit Unix time)
//   - r: Rounding direction
//
// Returns:
//   - Key: Boundary key
//   - error: ErrInvalidRounding or ErrTimeOutOfRange
func KeyFromTime(t time.Time, r Rounding) (Key, error) {
	var k Key

	var fill byte
	switch r {
	case RoundMin:
		fill = 0x00
	case RoundMax:
		fill = 0xff
	default:
		return k, fmt.Errorf("%w: %s", ErrInvalidRounding, r)
	}

	secs := t.Unix()
	if secs < 0 || secs > math.MaxUint32 {
		return k, fmt.Errorf("%w: %s", ErrTimeOutOfRange, t.UTC().Format(time.RFC3339))
	}

	binary.BigEndian.PutUint32(k[:4], uint32(secs)) //nolint:gosec // bounds checked above
	for i := 4; i < KeySize; i++ {
		k[i] = fill
	}

	return k, nil
}

// MustKeyFromTime is like KeyFromTime but panics on error.
func MustKeyFromTime(t time.Time, r Rounding) Key {
	k, err := KeyFromTime(t, r)
	if err != nil {
		panic(err)
	}

	return k
}

// KeyFromUint64 builds a key whose integer value is v.
func KeyFromUint64(v uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[4:], v)

	return k
}

// ParseKey decodes a 24-character hex string.
func ParseKey(s string) (Key, error) {
	var k Key

	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid key %q: %w", s, err)
	}
	if len(b) != KeySize {
		return k, fmt.Errorf("invalid key %q: expected %d bytes, got %d", s, KeySize, len(b))
	}
	copy(k[:], b)

	return k, nil
}

// Hex returns the lowercase hex encoding of the key.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Hex()
}

// Time returns the timestamp encoded in the leading four bytes.
func (k Key) Time() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(k[:4])), 0).UTC()
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to or after o.
func (k Key) Compare(o Key) int {
	return bytes.Compare(k[:], o[:])
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool {
	return k.Compare(o) < 0
}

// Int returns the key as a non-negative integer.
func (k Key) Int() *big.Int {
	return new(big.Int).SetBytes(k[:])
}

// Sub returns the signed distance k - o.
func (k Key) Sub(o Key) *big.Int {
	return new(big.Int).Sub(k.Int(), o.Int())
}

// Add returns k + delta. Results outside the keyspace saturate at MinKey or MaxKey.
func (k Key) Add(delta *big.Int) Key {
	sum := new(big.Int).Add(k.Int(), delta)
	if sum.Sign() < 0 {
		return MinKey
	}
	if sum.Cmp(maxKeyInt) > 0 {
		return MaxKey
	}

	var out Key
	sum.FillBytes(out[:])

	return out
}

// Prev returns the key immediately before k, or MinKey when k is MinKey.
func (k Key) Prev() Key {
	return k.Add(big.NewInt(-1))
}

// MarshalText encodes the key as hex.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

// UnmarshalText decodes a hex encoded key.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed

	return nil
}
