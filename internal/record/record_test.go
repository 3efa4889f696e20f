package record

import (
	"bytes"
	"testing"
	"time"

	"github.com/LiuShuoJiang/titanium/titaniumerr"
	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeFull_RoundTrip(t *testing.T) {
	rec := &Record{
		EntryType:      0,
		CreatedAt:      uint64(time.Now().UnixMilli()),
		SequenceNumber: 42,
		Key:            []byte("hello"),
		Value:          []byte("world"),
	}

	encoded := Encode(rec)
	got, err := DecodeFull(bytes.NewReader(encoded), Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.Nil(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, rec.Value, got.Value)
	assert.Equal(t, rec.SequenceNumber, got.SequenceNumber)
	assert.False(t, got.IsTombstone())
	assert.False(t, got.HasTTL())
}

func TestEncodeDecodeFull_Tombstone(t *testing.T) {
	rec := &Record{
		EntryType:      FlagTombstone,
		CreatedAt:      1,
		SequenceNumber: 2,
		Key:            []byte("gone"),
	}

	encoded := Encode(rec)
	got, err := DecodeFull(bytes.NewReader(encoded), Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.Nil(t, err)
	assert.True(t, got.IsTombstone())
	assert.Empty(t, got.Value)
}

func TestEncodeDecodeFull_TTL(t *testing.T) {
	rec := &Record{
		EntryType:      FlagTTL,
		CreatedAt:      1,
		SequenceNumber: 3,
		ExpireAt:       9999,
		Key:            []byte("ttl-key"),
		Value:          []byte("ttl-value"),
	}

	encoded := Encode(rec)
	got, err := DecodeFull(bytes.NewReader(encoded), Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.Nil(t, err)
	assert.True(t, got.HasTTL())
	assert.Equal(t, uint64(9999), got.ExpireAt)
}

func TestDecodeHeaderOnly_DoesNotConsumeValue(t *testing.T) {
	rec := &Record{SequenceNumber: 7, Key: []byte("k"), Value: []byte("v-long-payload")}
	encoded := Encode(rec)

	r := bytes.NewReader(encoded)
	hdr, err := DecodeHeaderOnly(r, Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.Nil(t, err)
	assert.NotNil(t, hdr)
	assert.Equal(t, uint32(len(rec.Value)), hdr.ValueLen)
	assert.Equal(t, int64(4+len(rec.Value)), int64(r.Len())) // body_crc + value left unread
}

func TestDecodeFull_CleanEOF(t *testing.T) {
	got, err := DecodeFull(bytes.NewReader(nil), Limits{MaxKeySize: 1024, MaxValueSize: 1024})
	assert.Nil(t, err)
	assert.Nil(t, got)
}

func TestDecodeHeaderOnly_CleanEOF(t *testing.T) {
	hdr, err := DecodeHeaderOnly(bytes.NewReader(nil), Limits{MaxKeySize: 1024, MaxValueSize: 1024})
	assert.Nil(t, err)
	assert.Nil(t, hdr)
}

func TestDecodeFull_HeaderCRCMismatch(t *testing.T) {
	rec := &Record{SequenceNumber: 1, Key: []byte("k"), Value: []byte("v")}
	encoded := Encode(rec)
	encoded[4] ^= 0xFF // corrupt entry_type byte inside the header-CRC'd region

	_, err := DecodeFull(bytes.NewReader(encoded), Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.True(t, titaniumerr.Is(err, titaniumerr.CRCMismatch))
	assert.True(t, titaniumerr.IsCorruption(err))
}

func TestDecodeFull_BodyCRCMismatch(t *testing.T) {
	rec := &Record{SequenceNumber: 1, Key: []byte("k"), Value: []byte("value")}
	encoded := Encode(rec)
	encoded[len(encoded)-1] ^= 0xFF // corrupt last value byte

	_, err := DecodeFull(bytes.NewReader(encoded), Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.True(t, titaniumerr.Is(err, titaniumerr.CRCMismatch))
}

func TestDecodeFull_TruncatedTail(t *testing.T) {
	rec := &Record{SequenceNumber: 1, Key: []byte("k"), Value: []byte("value")}
	encoded := Encode(rec)
	truncated := encoded[:len(encoded)-3]

	_, err := DecodeFull(bytes.NewReader(truncated), Limits{MaxKeySize: 1024, MaxValueSize: 1024})

	assert.True(t, titaniumerr.IsCorruption(err))
}

func TestDecodeFull_KeyTooLarge(t *testing.T) {
	rec := &Record{SequenceNumber: 1, Key: []byte("too-long-key"), Value: []byte("v")}
	encoded := Encode(rec)

	_, err := DecodeFull(bytes.NewReader(encoded), Limits{MaxKeySize: 4, MaxValueSize: 1024})

	assert.True(t, titaniumerr.Is(err, titaniumerr.InvalidData))
}
