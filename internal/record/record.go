package record

import (
	"encoding/binary"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/LiuShuoJiang/titanium/titaniumerr"
)

// scratchPool pools the byte slices Encode builds records in, reducing
// allocations on the hot write path under sustained throughput.
var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

// Entry-type flag bits: bit 0 marks a tombstone, bit 2 marks a
// TTL-bearing record. Other bits are reserved.
const (
	FlagTombstone uint8 = 1 << 0
	FlagTTL       uint8 = 1 << 2
)

// Record is a single append-unit: the decoded form of one on-disk entry.
type Record struct {
	EntryType      uint8
	CreatedAt      uint64
	SequenceNumber uint64
	ExpireAt       uint64 // only meaningful when EntryType&FlagTTL != 0
	Key            []byte
	Value          []byte
}

// IsTombstone reports whether this record is a delete marker.
func (r *Record) IsTombstone() bool { return r.EntryType&FlagTombstone != 0 }

// HasTTL reports whether this record carries an expire_at field.
func (r *Record) HasTTL() bool { return r.EntryType&FlagTTL != 0 }

// Header is the result of a header-only decode: everything needed to
// update the index (key, value length) without paying for the value read.
type Header struct {
	EntryType      uint8
	CreatedAt      uint64
	SequenceNumber uint64
	KeyLen         uint32
	ValueLen       uint32
	ExpireAt       uint64
	Key            []byte
}

// IsTombstone reports whether this header describes a delete marker.
func (h *Header) IsTombstone() bool { return h.EntryType&FlagTombstone != 0 }

// Limits bounds the key/value sizes the codec will accept, mirroring the
// max_key_size / max_val_size configuration options.
type Limits struct {
	MaxKeySize   uint32
	MaxValueSize uint32
}

// Encode serializes rec into the on-disk layout below and returns the
// full encoded byte slice.
//
//	[header_crc][entry_type][created_at][sequence_number][key_len][value_len]{[expire_at]}[key][body_crc][value]
func Encode(rec *Record) []byte {
	bp := scratchPool.Get().(*[]byte)
	scratch := (*bp)[:0]
	defer func() {
		*bp = scratch[:0]
		scratchPool.Put(bp)
	}()

	scratch = append(scratch, 0, 0, 0, 0) // placeholder for header_crc
	scratch = append(scratch, rec.EntryType)

	var tmp [MaxVarintLen]byte
	n := PutUvarint64(tmp[:], rec.CreatedAt)
	scratch = append(scratch, tmp[:n]...)

	n = PutUvarint64(tmp[:], rec.SequenceNumber)
	scratch = append(scratch, tmp[:n]...)

	n = PutUvarint32(tmp[:], uint32(len(rec.Key)))
	scratch = append(scratch, tmp[:n]...)

	n = PutUvarint32(tmp[:], uint32(len(rec.Value)))
	scratch = append(scratch, tmp[:n]...)

	if rec.EntryType&FlagTTL != 0 {
		n = PutUvarint64(tmp[:], rec.ExpireAt)
		scratch = append(scratch, tmp[:n]...)
	}

	tailStart := 5 // offset right after header_crc+entry_type
	tail := append([]byte(nil), scratch[tailStart:]...)
	scratch = append(scratch, rec.Key...)

	crc := headerCRC(rec.EntryType, tail, rec.Key)
	binary.LittleEndian.PutUint32(scratch[0:4], crc)

	scratch = append(scratch, 0, 0, 0, 0) // placeholder for body_crc
	bcrc := bodyCRC(rec.Value)
	binary.LittleEndian.PutUint32(scratch[len(scratch)-4:], bcrc)

	scratch = append(scratch, rec.Value...)

	out := make([]byte, len(scratch))
	copy(out, scratch)
	return out
}

// readFull reads exactly n bytes from r, distinguishing a clean start of
// stream (EOF with zero bytes consumed so far) from a short read inside a
// record.
func readFull(r io.Reader, n int) ([]byte, bool, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err == io.EOF && read == 0 {
		return nil, true, nil // clean end-of-stream
	}
	if err != nil {
		return nil, false, titaniumerr.Wrap(titaniumerr.UnexpectedEOF, "short read inside record", err)
	}
	return buf, false, nil
}

// readUvarint reads a little-endian LEB128 value one byte at a time,
// bounding the accumulated shift at shiftCeiling (63 for the u64 fields,
// 28 for key_len/value_len) exactly as Uvarint64/Uvarint32 do for the
// buffer-oriented decode path.
func readUvarint(r io.Reader, shiftCeiling uint) (uint64, error) {
	var v uint64
	var shift uint
	var b [1]byte
	for {
		if shift > shiftCeiling {
			return 0, titaniumerr.New(titaniumerr.VarintDecode, "varint exceeds shift ceiling")
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, titaniumerr.Wrap(titaniumerr.UnexpectedEOF, "short read inside varint", err)
		}
		if b[0] < 0x80 {
			v |= uint64(b[0]) << shift
			return v, nil
		}
		v |= uint64(b[0]&0x7f) << shift
		shift += 7
	}
}

func readUvarint64(r io.Reader) (uint64, error) {
	return readUvarint(r, 63)
}

func readUvarint32(r io.Reader) (uint32, error) {
	v, err := readUvarint(r, 28)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// decodePreamble reads everything through key_len/value_len/expire_at and
// the key bytes, validating the header CRC. It is shared by DecodeHeaderOnly
// and DecodeFull. ok=false with err=nil means clean end-of-stream.
func decodePreamble(r io.Reader, limits Limits) (hdr *Header, tail []byte, ok bool, err error) {
	crcBytes, eof, err := readFull(r, 4)
	if err != nil {
		return nil, nil, false, err
	}
	if eof {
		return nil, nil, false, nil
	}
	wantCRC := binary.LittleEndian.Uint32(crcBytes)

	entryTypeBytes, _, err := readFull(r, 1)
	if err != nil {
		return nil, nil, false, err
	}
	entryType := entryTypeBytes[0]

	createdAt, err := readUvarint64(r)
	if err != nil {
		return nil, nil, false, err
	}
	seqNo, err := readUvarint64(r)
	if err != nil {
		return nil, nil, false, err
	}
	keyLen, err := readUvarint32(r)
	if err != nil {
		return nil, nil, false, err
	}
	valueLen, err := readUvarint32(r)
	if err != nil {
		return nil, nil, false, err
	}

	var expireAt uint64
	if entryType&FlagTTL != 0 {
		expireAt, err = readUvarint64(r)
		if err != nil {
			return nil, nil, false, err
		}
	}

	if limits.MaxKeySize > 0 && keyLen > limits.MaxKeySize {
		return nil, nil, false, titaniumerr.New(titaniumerr.InvalidData, "key_len exceeds max_key_size")
	}
	if limits.MaxValueSize > 0 && valueLen > limits.MaxValueSize {
		return nil, nil, false, titaniumerr.New(titaniumerr.InvalidData, "value_len exceeds max_val_size")
	}

	key, _, err := readFull(r, int(keyLen))
	if err != nil {
		return nil, nil, false, err
	}
	if key == nil {
		key = []byte{}
	}

	tailBuf := encodeHeaderTail(createdAt, seqNo, keyLen, valueLen, entryType, expireAt)

	crc := headerCRC(entryType, tailBuf, key)
	if crc != wantCRC {
		return nil, nil, false, titaniumerr.New(titaniumerr.CRCMismatch, "header CRC mismatch")
	}

	h := &Header{
		EntryType:      entryType,
		CreatedAt:      createdAt,
		SequenceNumber: seqNo,
		KeyLen:         keyLen,
		ValueLen:       valueLen,
		ExpireAt:       expireAt,
		Key:            key,
	}
	return h, tailBuf, true, nil
}

func encodeHeaderTail(createdAt, seqNo uint64, keyLen, valueLen uint32, entryType uint8, expireAt uint64) []byte {
	var tmp [MaxVarintLen]byte
	var tail []byte

	n := PutUvarint64(tmp[:], createdAt)
	tail = append(tail, tmp[:n]...)

	n = PutUvarint64(tmp[:], seqNo)
	tail = append(tail, tmp[:n]...)

	n = PutUvarint32(tmp[:], keyLen)
	tail = append(tail, tmp[:n]...)

	n = PutUvarint32(tmp[:], valueLen)
	tail = append(tail, tmp[:n]...)

	if entryType&FlagTTL != 0 {
		n = PutUvarint64(tmp[:], expireAt)
		tail = append(tail, tmp[:n]...)
	}
	return tail
}

// DecodeHeaderOnly decodes a record's header and key, validating the header
// CRC, but does not read the body CRC or value — the hot path for recovery.
// Returns (nil, nil) on clean end-of-stream.
func DecodeHeaderOnly(r io.Reader, limits Limits) (*Header, error) {
	hdr, _, ok, err := decodePreamble(r, limits)
	if err != nil || !ok {
		return nil, err
	}
	return hdr, nil
}

// DecodeFull decodes an entire record, including the body CRC and value,
// validating both checksums and the decoded key's UTF-8 well-formedness.
// Returns (nil, nil) on clean end-of-stream.
func DecodeFull(r io.Reader, limits Limits) (*Record, error) {
	hdr, _, ok, err := decodePreamble(r, limits)
	if err != nil || !ok {
		return nil, err
	}

	if !utf8.Valid(hdr.Key) {
		return nil, titaniumerr.New(titaniumerr.InvalidData, "key is not valid UTF-8")
	}

	bodyCRCBytes, _, err := readFull(r, 4)
	if err != nil {
		return nil, err
	}
	wantBodyCRC := binary.LittleEndian.Uint32(bodyCRCBytes)

	value, _, err := readFull(r, int(hdr.ValueLen))
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}

	if bodyCRC(value) != wantBodyCRC {
		return nil, titaniumerr.New(titaniumerr.CRCMismatch, "body CRC mismatch")
	}

	return &Record{
		EntryType:      hdr.EntryType,
		CreatedAt:      hdr.CreatedAt,
		SequenceNumber: hdr.SequenceNumber,
		ExpireAt:       hdr.ExpireAt,
		Key:            hdr.Key,
		Value:          value,
	}, nil
}

// HeaderEncodedSize returns the number of bytes DecodeHeaderOnly consumed
// for hdr: header fields plus the key, but not the body CRC or value.
func HeaderEncodedSize(hdr *Header) int64 {
	tail := encodeHeaderTail(hdr.CreatedAt, hdr.SequenceNumber, hdr.KeyLen, hdr.ValueLen, hdr.EntryType, hdr.ExpireAt)
	return int64(4 + 1 + len(tail) + len(hdr.Key))
}
