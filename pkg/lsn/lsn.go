// Package lsn implements the fixed-width big-integer log sequence number
// arithmetic used to address records in a WALe log.
//
// A log grows as a conceptually infinite append stream, so a log sequence
// number is modeled as a wide unsigned integer (Limbs 64-bit words) rather
// than a plain uint64, to keep very long-running logs from wrapping around.
package lsn

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Limbs is the number of 64-bit words making up an LSN (256 bits by default).
const Limbs = 4

// MaxWidthBytes is the largest serialized width an LSN can take.
const MaxWidthBytes = Limbs * 8

var (
	// ErrOverflow is returned by AddWithLimit when the sum would exceed the
	// configured max_limit.
	ErrOverflow = errors.New("lsn: addition overflows max limit")
	// ErrUnderflow is returned by Sub when b > a.
	ErrUnderflow = errors.New("lsn: subtraction underflows")
	// ErrWidthTooLarge is returned by Serialize when width exceeds MaxWidthBytes.
	ErrWidthTooLarge = errors.New("lsn: serialization width exceeds limb capacity")
	// ErrTruncated is returned by Serialize when bytes above width are non-zero.
	ErrTruncated = errors.New("lsn: value does not fit in requested width")
	// ErrNotUint64 is returned by CastToUint64 when limbs above 0 are set.
	ErrNotUint64 = errors.New("lsn: value exceeds 64 bits")
)

// LSN is a Limbs-word unsigned integer. limbs[0] is the least-significant word.
type LSN struct {
	limbs [Limbs]uint64
}

// Invalid is the distinguished "no such LSN" value.
var Invalid = LSN{}

// FromUint64 builds an LSN from a plain 64-bit value.
func FromUint64(v uint64) LSN {
	var l LSN
	l.limbs[0] = v
	return l
}

// IsInvalid reports whether l is the zero/INVALID_LSN value.
func (l LSN) IsInvalid() bool {
	return l == Invalid
}

// Compare returns -1, 0 or 1 as l is less than, equal to, or greater than o.
func (l LSN) Compare(o LSN) int {
	for i := Limbs; i > 0; {
		i--
		if l.limbs[i] < o.limbs[i] {
			return -1
		}
		if l.limbs[i] > o.limbs[i] {
			return 1
		}
	}
	return 0
}

func (l LSN) Less(o LSN) bool    { return l.Compare(o) < 0 }
func (l LSN) LessEq(o LSN) bool  { return l.Compare(o) <= 0 }
func (l LSN) Greater(o LSN) bool { return l.Compare(o) > 0 }

func willUnsignedSumOverflow(a, b uint64) bool {
	return a > ^uint64(0)-b
}

// AddUnsafe adds a and b limb-wise with carry propagation and returns the
// outgoing carry (0 or 1), performing no limit check.
func AddUnsafe(a, b LSN) (LSN, uint64) {
	return addWithCarry(a, b, 0)
}

func addWithCarry(a, b LSN, carryIn uint64) (LSN, uint64) {
	var res LSN
	carry := carryIn & 1
	for i := 0; i < Limbs; i++ {
		sum := a.limbs[i] + b.limbs[i]
		overflow1 := willUnsignedSumOverflow(a.limbs[i], b.limbs[i])
		sum2 := sum + carry
		overflow2 := willUnsignedSumOverflow(sum, carry)
		res.limbs[i] = sum2
		if overflow1 || overflow2 {
			carry = 1
		} else {
			carry = 0
		}
	}
	return res, carry
}

func bitwiseNot(a LSN) LSN {
	var res LSN
	for i := 0; i < Limbs; i++ {
		res.limbs[i] = ^a.limbs[i]
	}
	return res
}

// SubUnsafe computes a-b limb-wise (two's complement), returning the
// outgoing borrow (0 or 1), performing no underflow check.
func SubUnsafe(a, b LSN) (LSN, uint64) {
	notB := bitwiseNot(b)
	res, carry := addWithCarry(a, notB, 1)
	// carry==1 from the two's-complement add means no borrow occurred.
	return res, 1 - carry
}

// AddWithLimit adds a and b, failing with ErrOverflow if the result would
// exceed maxLimit or wrap the limb width.
func AddWithLimit(a, b, maxLimit LSN) (LSN, error) {
	res, carry := AddUnsafe(a, b)
	if carry != 0 {
		return Invalid, ErrOverflow
	}
	if res.Greater(maxLimit) {
		return Invalid, ErrOverflow
	}
	return res, nil
}

// Sub computes a-b, failing with ErrUnderflow if b > a.
func Sub(a, b LSN) (LSN, error) {
	res, borrow := SubUnsafe(a, b)
	if borrow != 0 {
		return Invalid, ErrUnderflow
	}
	return res, nil
}

// Serialize emits the width least-significant bytes of l, little-endian. It
// fails with ErrTruncated if any byte beyond width is non-zero, i.e. if l
// does not actually fit in width bytes.
func (l LSN) Serialize(width int) ([]byte, error) {
	if width < 0 || width > MaxWidthBytes {
		return nil, ErrWidthTooLarge
	}

	full := make([]byte, MaxWidthBytes)
	for i := 0; i < Limbs; i++ {
		binary.LittleEndian.PutUint64(full[i*8:(i+1)*8], l.limbs[i])
	}

	for i := width; i < MaxWidthBytes; i++ {
		if full[i] != 0 {
			return nil, ErrTruncated
		}
	}

	out := make([]byte, width)
	copy(out, full[:width])
	return out, nil
}

// Deserialize reads the little-endian bytes of b into an LSN. Positions past
// len(b) are implicitly zero; bytes of b beyond MaxWidthBytes are ignored.
func Deserialize(b []byte) LSN {
	var full [MaxWidthBytes]byte
	n := copy(full[:], b)
	_ = n
	var l LSN
	for i := 0; i < Limbs; i++ {
		l.limbs[i] = binary.LittleEndian.Uint64(full[i*8 : (i+1)*8])
	}
	return l
}

// CastToUint64 returns the low 64 bits of l, failing with ErrNotUint64 if any
// higher limb is non-zero.
func (l LSN) CastToUint64() (uint64, error) {
	for i := 1; i < Limbs; i++ {
		if l.limbs[i] != 0 {
			return 0, ErrNotUint64
		}
	}
	return l.limbs[0], nil
}

func (l LSN) String() string {
	v, err := l.CastToUint64()
	if err == nil {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%#x%016x%016x%016x", l.limbs[3], l.limbs[2], l.limbs[1], l.limbs[0])
}
