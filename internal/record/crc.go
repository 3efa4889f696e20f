package record

import "hash/crc32"

// headerCRC computes the CRC32 (IEEE polynomial) of the header span:
// entry_type through key, inclusive.
func headerCRC(entryType byte, tail []byte, key []byte) uint32 {
	crc := crc32.ChecksumIEEE([]byte{entryType})
	crc = crc32.Update(crc, crc32.IEEETable, tail)
	crc = crc32.Update(crc, crc32.IEEETable, key)
	return crc
}

// bodyCRC computes the CRC32 of the value alone.
func bodyCRC(value []byte) uint32 {
	return crc32.ChecksumIEEE(value)
}
