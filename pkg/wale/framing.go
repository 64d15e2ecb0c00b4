package wale

import (
	"encoding/binary"

	"github.com/cobaltdb/wale/pkg/checksum"
)

// HeaderSize is the on-disk size of a log record's header: prev_size(4) +
// curr_size(4) + header_crc(4), per spec.md §3.3.
const HeaderSize = 12

// PayloadCRCSize is the size of the trailing payload CRC.
const PayloadCRCSize = 4

// SlotOverhead is the fixed per-record overhead: HeaderSize + PayloadCRCSize.
const SlotOverhead = HeaderSize + PayloadCRCSize

// headerBytesWithCRC produces the 12-byte header for a record with the given
// prev/curr payload sizes, per spec.md §4.3.
func headerBytesWithCRC(prevSize, currSize uint32) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], prevSize)
	binary.LittleEndian.PutUint32(buf[4:8], currSize)
	crc := checksum.IEEE(buf[0:8])
	binary.LittleEndian.PutUint32(buf[8:12], crc)
	return buf
}

// parseHeaderBytes verifies and decodes a 12-byte header buffer.
func parseHeaderBytes(buf []byte) (prevSize, currSize uint32, err error) {
	if len(buf) != HeaderSize {
		return 0, 0, ErrHeaderCorrupted
	}
	prevSize = binary.LittleEndian.Uint32(buf[0:4])
	currSize = binary.LittleEndian.Uint32(buf[4:8])
	storedCRC := binary.LittleEndian.Uint32(buf[8:12])
	if checksum.IEEE(buf[0:8]) != storedCRC {
		return 0, 0, ErrHeaderCorrupted
	}
	return prevSize, currSize, nil
}

// buildRecordFrame assembles the full on-disk byte sequence for one record:
// header(12) + payload + payload_crc(4), per spec.md §3.3/§4.6.
func buildRecordFrame(prevSize uint32, payload []byte) []byte {
	currSize := uint32(len(payload))
	frame := make([]byte, SlotOverhead+len(payload))
	copy(frame[0:HeaderSize], headerBytesWithCRC(prevSize, currSize))
	copy(frame[HeaderSize:HeaderSize+len(payload)], payload)
	crc := checksum.IEEE(payload)
	binary.LittleEndian.PutUint32(frame[HeaderSize+len(payload):], crc)
	return frame
}
