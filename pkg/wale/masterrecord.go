package wale

import (
	"encoding/binary"
	"fmt"

	"github.com/cobaltdb/wale/pkg/checksum"
	"github.com/cobaltdb/wale/pkg/lsn"
)

const masterRecordMagic = "WALe"
const masterRecordVersion = uint32(1)

// masterRecordFixedHeaderSize is the size of the magic, version and
// lsn_width fields preceding the four LSN fields.
const masterRecordFixedHeaderSize = 4 + 4 + 4

// MasterRecord is the single source of truth for the durable LSN range
// (spec.md §3.2), stored in block 0 of the file.
type MasterRecord struct {
	LSNWidth       int
	FirstLSN       lsn.LSN
	CheckPointLSN  lsn.LSN
	LastFlushedLSN lsn.LSN
	NextLSN        lsn.LSN
}

func emptyMasterRecord(width int, next lsn.LSN) MasterRecord {
	return MasterRecord{
		LSNWidth:       width,
		FirstLSN:       lsn.Invalid,
		CheckPointLSN:  lsn.Invalid,
		LastFlushedLSN: lsn.Invalid,
		NextLSN:        next,
	}
}

// encodedSize returns the number of bytes the master record occupies
// (before zero-padding to the block size).
func (mr MasterRecord) encodedSize() int {
	return masterRecordFixedHeaderSize + 4*mr.LSNWidth + 4
}

// encodeMasterRecord serializes mr into a blockSize-sized, zero-padded
// buffer with its master_crc32 computed over every preceding byte.
func encodeMasterRecord(mr MasterRecord, blockSize int) ([]byte, error) {
	size := mr.encodedSize()
	if size > blockSize {
		return nil, fmt.Errorf("wale: master record (%d bytes) does not fit in block size %d", size, blockSize)
	}

	buf := make([]byte, blockSize)
	copy(buf[0:4], masterRecordMagic)
	binary.LittleEndian.PutUint32(buf[4:8], masterRecordVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(mr.LSNWidth))

	off := masterRecordFixedHeaderSize
	for _, v := range []lsn.LSN{mr.FirstLSN, mr.CheckPointLSN, mr.LastFlushedLSN, mr.NextLSN} {
		b, err := v.Serialize(mr.LSNWidth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}
		copy(buf[off:off+mr.LSNWidth], b)
		off += mr.LSNWidth
	}

	crc := checksum.IEEE(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:off+4], crc)

	return buf, nil
}

// decodeMasterRecord parses and CRC-verifies a master record from a raw
// block-0 buffer.
func decodeMasterRecord(buf []byte) (MasterRecord, error) {
	if len(buf) < masterRecordFixedHeaderSize+4 {
		return MasterRecord{}, ErrMasterRecordCorrupted
	}
	if string(buf[0:4]) != masterRecordMagic {
		return MasterRecord{}, ErrMasterRecordCorrupted
	}

	width := int(binary.LittleEndian.Uint32(buf[8:12]))
	if width < 0 || width > lsn.MaxWidthBytes {
		return MasterRecord{}, ErrMasterRecordCorrupted
	}

	needed := masterRecordFixedHeaderSize + 4*width + 4
	if len(buf) < needed {
		return MasterRecord{}, ErrMasterRecordCorrupted
	}

	off := masterRecordFixedHeaderSize
	fields := make([]lsn.LSN, 4)
	for i := range fields {
		fields[i] = lsn.Deserialize(buf[off : off+width])
		off += width
	}

	storedCRC := binary.LittleEndian.Uint32(buf[off : off+4])
	calcCRC := checksum.IEEE(buf[:off])
	if storedCRC != calcCRC {
		return MasterRecord{}, ErrMasterRecordCorrupted
	}

	return MasterRecord{
		LSNWidth:       width,
		FirstLSN:       fields[0],
		CheckPointLSN:  fields[1],
		LastFlushedLSN: fields[2],
		NextLSN:        fields[3],
	}, nil
}
