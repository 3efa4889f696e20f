// Package record implements Titanium's on-disk log record format: the
// varint encoding, the running CRC helper, and the two-CRC record codec
// described by the storage engine's append-only format.
package record

import "github.com/LiuShuoJiang/titanium/titaniumerr"

// MaxVarintLen is the largest number of bytes a 64-bit varint can occupy
// under this encoding.
const MaxVarintLen = 10

// PutUvarint64 writes v into buf (which must be at least MaxVarintLen bytes)
// using little-endian unsigned LEB128: seven payload bits per byte, with the
// high bit set iff another byte follows. It returns the number of bytes
// written.
func PutUvarint64(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// PutUvarint32 is PutUvarint64 specialized for 32-bit values; the wire
// format is identical, only the decode-side ceiling differs.
func PutUvarint32(buf []byte, v uint32) int {
	return PutUvarint64(buf, uint64(v))
}

// Uvarint64 decodes a little-endian unsigned LEB128 value from buf, bounding
// the accumulated shift at 63 bits. It returns the decoded value and the
// number of bytes consumed, a VarintDecode error if the shift ceiling is
// exceeded before a terminating byte is seen, or an UnexpectedEOF error if
// buf runs out first.
func Uvarint64(buf []byte) (uint64, int, error) {
	return uvarint(buf, 63)
}

// Uvarint32 is Uvarint64 with the shift ceiling lowered to 28 bits, matching
// the narrower range of key_len/value_len fields.
func Uvarint32(buf []byte) (uint32, int, error) {
	v, n, err := uvarint(buf, 28)
	if err != nil {
		return 0, 0, err
	}
	return uint32(v), n, nil
}

func uvarint(buf []byte, shiftCeiling uint) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if shift > shiftCeiling {
			return 0, 0, titaniumerr.New(titaniumerr.VarintDecode, "varint exceeds shift ceiling")
		}
		if b < 0x80 {
			v |= uint64(b) << shift
			return v, i + 1, nil
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0, titaniumerr.New(titaniumerr.UnexpectedEOF, "varint truncated: no terminating byte")
}
