package wale

import (
	"encoding/binary"

	"github.com/cobaltdb/wale/pkg/checksum"
	"github.com/cobaltdb/wale/pkg/lsn"
)

// readAt reads length durable bytes starting at file offset, translating
// the arbitrary byte range into the whole-block reads blockio.BlockIO
// actually supports, per spec.md §4.5. Only flushed bytes are ever
// requested through this path, so the underlying block I/O is guaranteed
// to already hold them.
func (w *Wale) readAt(offset uint64, length int) ([]byte, error) {
	bs := w.blockSize()
	firstBlock := offset / uint64(bs)
	within := int(offset % uint64(bs))
	blockCount := (within + length + bs - 1) / bs

	buf := make([]byte, blockCount*bs)
	if err := w.blockIO.ReadBlocks(buf, firstBlock, blockCount); err != nil {
		return nil, ErrReadIOError
	}
	return buf[within : within+length], nil
}

func (w *Wale) flushedSnapshot() MasterRecord {
	w.flushedViewLock.RLock()
	defer w.flushedViewLock.RUnlock()
	return w.onDiskMasterRecord
}

// GetFirstLSN returns the durable first LSN in the log, or lsn.Invalid if empty.
func (w *Wale) GetFirstLSN() lsn.LSN { return w.flushedSnapshot().FirstLSN }

// GetLastFlushedLSN returns the durable, reader-visible upper bound of the log.
func (w *Wale) GetLastFlushedLSN() lsn.LSN { return w.flushedSnapshot().LastFlushedLSN }

// GetCheckPointLSN returns the durable checkpoint LSN.
func (w *Wale) GetCheckPointLSN() lsn.LSN { return w.flushedSnapshot().CheckPointLSN }

// GetNextLSN returns the durable next LSN to be assigned on append, per
// spec.md §4.4: a snapshot of the on-disk master record's field, like every
// other reader op. A not-yet-flushed append is not reflected here.
func (w *Wale) GetNextLSN() lsn.LSN { return w.flushedSnapshot().NextLSN }

// GetLSNWidth returns the configured master-record LSN field width.
func (w *Wale) GetLSNWidth() int { return w.lsnWidth }

func (w *Wale) recordHeaderAt(offset uint64) (prevSize, currSize uint32, err error) {
	hdr, err := w.readAt(offset, HeaderSize)
	if err != nil {
		return 0, 0, err
	}
	return parseHeaderBytes(hdr)
}

// GetLogRecordAt returns the payload of the durable record at LSN at.
func (w *Wale) GetLogRecordAt(at lsn.LSN) ([]byte, error) {
	mr := w.flushedSnapshot()
	if mr.FirstLSN.IsInvalid() || at.Less(mr.FirstLSN) || mr.LastFlushedLSN.Less(at) {
		return nil, ErrParamInvalid
	}

	offset, err := fileOffsetOfLSN(at, mr.FirstLSN, w.blockSize())
	if err != nil {
		return nil, err
	}

	_, currSize, err := w.recordHeaderAt(offset)
	if err != nil {
		return nil, err
	}
	if err := w.checkRecordEndWithinNextLSN(at, mr, currSize); err != nil {
		return nil, err
	}

	payload, err := w.readAt(offset+HeaderSize, int(currSize))
	if err != nil {
		return nil, err
	}

	crcBytes, err := w.readAt(offset+HeaderSize+uint64(currSize), PayloadCRCSize)
	if err != nil {
		return nil, err
	}
	stored := binary.LittleEndian.Uint32(crcBytes)
	if checksum.IEEE(payload) != stored {
		return nil, ErrLogRecordCorrupted
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// checkRecordEndWithinNextLSN rejects a header whose claimed curr_size would
// place the record's end beyond next_lsn, per spec.md §4.4's get_log_record_at
// step "verifies that the record's end does not exceed next_lsn" — a defense
// against a header whose prev/curr_size bytes were corrupted in a way that
// still happens to satisfy header_crc.
func (w *Wale) checkRecordEndWithinNextLSN(at lsn.LSN, mr MasterRecord, currSize uint32) error {
	frameLen := uint64(HeaderSize) + uint64(currSize) + uint64(PayloadCRCSize)
	end, carry := lsn.AddUnsafe(at, lsn.FromUint64(frameLen))
	if carry != 0 || mr.NextLSN.Less(end) {
		return ErrHeaderCorrupted
	}
	return nil
}

// ValidateLogRecordAt verifies the header and payload CRCs of the durable
// record at LSN at without returning its payload. The payload is read at
// most one block's worth at a time and fed through a streaming CRC writer,
// so the whole payload is never held in memory.
func (w *Wale) ValidateLogRecordAt(at lsn.LSN) error {
	mr := w.flushedSnapshot()
	if mr.FirstLSN.IsInvalid() || at.Less(mr.FirstLSN) || mr.LastFlushedLSN.Less(at) {
		return ErrParamInvalid
	}

	offset, err := fileOffsetOfLSN(at, mr.FirstLSN, w.blockSize())
	if err != nil {
		return err
	}

	_, currSize, err := w.recordHeaderAt(offset)
	if err != nil {
		return err
	}
	if err := w.checkRecordEndWithinNextLSN(at, mr, currSize); err != nil {
		return err
	}

	cw := checksum.NewWriter()
	bs := uint64(w.blockSize())
	for done := uint64(0); done < uint64(currSize); {
		n := bs
		if left := uint64(currSize) - done; left < n {
			n = left
		}
		chunk, err := w.readAt(offset+HeaderSize+done, int(n))
		if err != nil {
			return err
		}
		if _, err := cw.Write(chunk); err != nil {
			return err
		}
		done += n
	}

	crcBytes, err := w.readAt(offset+HeaderSize+uint64(currSize), PayloadCRCSize)
	if err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(crcBytes) != cw.Sum32() {
		return ErrLogRecordCorrupted
	}
	return nil
}

// GetNextLSNOf returns the LSN of the record immediately following at.
// Per spec.md §4.4, at must lie in [first, last_flushed] or this fails
// with ErrParamInvalid; if at is the last durable record this returns
// lsn.Invalid with no error rather than a next record.
func (w *Wale) GetNextLSNOf(at lsn.LSN) (lsn.LSN, error) {
	mr := w.flushedSnapshot()
	if mr.FirstLSN.IsInvalid() || at.Less(mr.FirstLSN) || mr.LastFlushedLSN.Less(at) {
		return lsn.Invalid, ErrParamInvalid
	}
	if at.Compare(mr.LastFlushedLSN) == 0 {
		return lsn.Invalid, nil
	}

	offset, err := fileOffsetOfLSN(at, mr.FirstLSN, w.blockSize())
	if err != nil {
		return lsn.Invalid, err
	}
	_, currSize, err := w.recordHeaderAt(offset)
	if err != nil {
		return lsn.Invalid, err
	}

	frameLen := uint64(HeaderSize) + uint64(currSize) + uint64(PayloadCRCSize)
	next, carry := lsn.AddUnsafe(at, lsn.FromUint64(frameLen))
	if carry != 0 || mr.LastFlushedLSN.Less(next) {
		return lsn.Invalid, ErrHeaderCorrupted
	}
	return next, nil
}

// GetPrevLSNOf returns the LSN of the record immediately preceding at.
// Per spec.md §4.4, at must lie in [first, last_flushed] or this fails
// with ErrParamInvalid; if at is the first record this returns
// lsn.Invalid with no error rather than a previous record.
func (w *Wale) GetPrevLSNOf(at lsn.LSN) (lsn.LSN, error) {
	mr := w.flushedSnapshot()
	if mr.FirstLSN.IsInvalid() || at.Less(mr.FirstLSN) || mr.LastFlushedLSN.Less(at) {
		return lsn.Invalid, ErrParamInvalid
	}
	if at.Compare(mr.FirstLSN) == 0 {
		return lsn.Invalid, nil
	}

	offset, err := fileOffsetOfLSN(at, mr.FirstLSN, w.blockSize())
	if err != nil {
		return lsn.Invalid, err
	}
	prevSize, _, err := w.recordHeaderAt(offset)
	if err != nil {
		return lsn.Invalid, err
	}

	frameLen := uint64(HeaderSize) + uint64(prevSize) + uint64(PayloadCRCSize)
	prev, borrow := lsn.SubUnsafe(at, lsn.FromUint64(frameLen))
	if borrow != 0 || prev.Less(mr.FirstLSN) {
		return lsn.Invalid, ErrHeaderCorrupted
	}
	return prev, nil
}
