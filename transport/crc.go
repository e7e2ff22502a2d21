package transport

import (
	"encoding/binary"
	"hash/crc32"
)

// checksum returns the CRC-32 (IEEE) over the given parts.
func checksum(parts ...[]byte) uint32 {
	var sum uint32
	for _, p := range parts {
		sum = crc32.Update(sum, crc32.IEEETable, p)
	}
	return sum
}

func putChecksum(dst []byte, sum uint32) {
	binary.BigEndian.PutUint32(dst, sum)
}

func readChecksum(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}
