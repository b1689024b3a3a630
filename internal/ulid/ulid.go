// Package ulid generates and formats ULIDs: a 48-bit millisecond
// timestamp followed by 80 bits of randomness, encoded as 26 Crockford
// base32 characters. No library in the reference corpus provides this
// encoding, so it is implemented directly against the standard library
// (see DESIGN.md for why this wasn't pulled in as a new dependency).
package ulid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// Size is the length of a ULID in bytes (6 timestamp + 10 random).
const Size = 16

const encoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULID is a 128-bit lexicographically-sortable identifier.
type ULID [Size]byte

// New generates a ULID from the current time and a random payload.
func New() (ULID, error) {
	return newAt(time.Now())
}

func newAt(t time.Time) (ULID, error) {
	var id ULID
	ms := uint64(t.UnixMilli())
	if ms >= 1<<48 {
		return id, fmt.Errorf("ulid: timestamp %d overflows 48 bits", ms)
	}

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], ms)
	copy(id[:6], tsBuf[2:])

	if _, err := rand.Read(id[6:]); err != nil {
		return id, fmt.Errorf("ulid: read random payload: %w", err)
	}
	return id, nil
}

// String encodes the ULID as 26 Crockford base32 characters. 128 bits
// don't split evenly into 5-bit groups, so (as in the reference ULID
// encoding) the first character carries only the top 3 bits of the
// first byte; every character after that streams 5 bits at a time
// MSB-first over the rest.
func (id ULID) String() string {
	var out [26]byte
	out[0] = encoding[id[0]>>5]

	carry := uint32(id[0]) & 0x1F
	bits := 5
	oi := 1
	for _, b := range id[1:] {
		carry = carry<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[oi] = encoding[(carry>>uint(bits))&0x1F]
			oi++
		}
	}

	return string(out[:])
}

var decodeTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 0xFF
	}
	for i := 0; i < len(encoding); i++ {
		t[encoding[i]] = byte(i)
	}
	// Crockford base32 treats I/L as 1 and O as 0.
	t['I'], t['i'] = 1, 1
	t['L'], t['l'] = 1, 1
	t['O'], t['o'] = 0, 0
	return t
}()

// Parse decodes a 26-character Crockford base32 ULID string, the
// inverse of String.
func Parse(s string) (ULID, error) {
	var id ULID
	if len(s) != 26 {
		return id, fmt.Errorf("ulid: invalid length %d, want 26", len(s))
	}

	v0 := decodeTable[s[0]]
	if v0 == 0xFF {
		return ULID{}, fmt.Errorf("ulid: invalid character %q", s[0])
	}
	if v0 > 7 {
		return ULID{}, fmt.Errorf("ulid: first character %q overflows 128 bits", s[0])
	}

	carry := uint32(v0)
	bits := 3
	oi := 0
	for i := 1; i < len(s); i++ {
		v := decodeTable[s[i]]
		if v == 0xFF {
			return ULID{}, fmt.Errorf("ulid: invalid character %q", s[i])
		}
		carry = carry<<5 | uint32(v)
		bits += 5
		for bits >= 8 {
			bits -= 8
			id[oi] = byte(carry >> uint(bits))
			oi++
		}
	}
	if oi != Size {
		return ULID{}, fmt.Errorf("ulid: decoded %d of %d bytes", oi, Size)
	}

	return id, nil
}
