// Package wale implements the core of a write-ahead log engine: a durable,
// append-only log stored in a fixed-block file, with CRC-verified framing,
// big-integer log sequence numbers, and a concurrency discipline that lets
// many parallel appenders, a scrolling writer, flushers, readers and
// truncation proceed safely against both an in-memory and an on-disk view
// of the master record.
package wale

import (
	"sync"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
)

// state is the lifecycle state machine spec.md §4.9 describes:
// uninitialized -> running -> (major scroll error is an absorbing state
// within running, checked per-call, not a separate state value) -> deinitialized.
type state int

const (
	stateUninitialized state = iota
	stateRunning
	stateDeinitialized
)

// DefaultLSNWidth is the master-record field width used when the caller
// does not otherwise configure one: 8 bytes is enough for a 64-bit LSN
// space, the common case, while the engine still supports up to
// lsn.MaxWidthBytes for very long-running logs.
const DefaultLSNWidth = 8

// Options configures a Wale instance at Initialize time.
type Options struct {
	// NextLSNSeed, if not lsn.Invalid, seeds a brand new empty log starting
	// at this LSN. If lsn.Invalid, the existing master record is read from
	// disk instead.
	NextLSNSeed lsn.LSN

	// ExternalLock, if non-nil, is a caller-owned mutex the instance shares
	// instead of an internal one (spec.md §5 "External lock mode"). In that
	// mode the engine does not lock/unlock around public API entry/exit;
	// the caller is expected to hold it.
	ExternalLock *sync.Mutex

	// BufferBlockCount is the number of blocks held in the append buffer.
	BufferBlockCount int

	// MaxLimit bounds addressable LSNs; append fails once next_lsn would
	// exceed it. Defaults to the all-ones value for LSNWidth bytes if zero.
	MaxLimit lsn.LSN

	// LSNWidth is the number of bytes used to serialize each master-record
	// LSN field. Defaults to DefaultLSNWidth.
	LSNWidth int
}

// Wale is a single write-ahead log engine instance.
type Wale struct {
	blockIO blockio.BlockIO

	// global_mutex: protects all master-record and buffer bookkeeping
	// metadata; every public operation holds it across LSN assignment and
	// buffer-space reservation.
	mu           sync.Mutex
	externalLock *sync.Mutex
	hasInternal  bool

	// append_buffer_lock: protects buffer contents, append_offset and
	// buffer_start_block_id.
	bufferLock upgradableRWLock

	// flushed_view_lock: protects on_disk_master_record and the durable
	// range of file bytes.
	flushedViewLock sync.RWMutex

	onDiskMasterRecord   MasterRecord
	inMemoryMasterRecord MasterRecord

	maxLimit lsn.LSN
	lsnWidth int

	alignedBuffer       *blockio.AlignedBuffer
	buffer              []byte
	bufferBlockCount    int
	bufferStartBlockID  uint64
	appendOffset        int

	majorScrollError bool

	// lastFrameSize is the curr_size of the most recently appended frame,
	// used as the next record's prev_size header field.
	lastFrameSize uint32

	state state
}

// capacity is the total addressable byte size of the append buffer.
func (w *Wale) capacity() int {
	return w.bufferBlockCount * w.blockSize()
}

func (w *Wale) lockGlobal() {
	if w.hasInternal {
		w.mu.Lock()
	}
}

func (w *Wale) unlockGlobal() {
	if w.hasInternal {
		w.mu.Unlock()
	}
}

// blockSize returns the configured block size of the underlying block I/O.
func (w *Wale) blockSize() int {
	return w.blockIO.BlockSize()
}

// Initialize brings a Wale instance up per spec.md §4.9: either seeding a
// fresh empty log at opts.NextLSNSeed, or reading the existing master
// record from disk; then allocating and, if the log is non-empty,
// pre-loading the append buffer's current partial block.
func Initialize(blockIO blockio.BlockIO, opts Options) (*Wale, error) {
	if opts.BufferBlockCount <= 0 {
		return nil, ErrParamInvalid
	}

	width := opts.LSNWidth
	if width == 0 {
		width = DefaultLSNWidth
	}

	maxLimit := opts.MaxLimit
	if maxLimit.IsInvalid() {
		maxLimit = allOnes(width)
	}

	w := &Wale{
		blockIO:          blockIO,
		hasInternal:      opts.ExternalLock == nil,
		externalLock:     opts.ExternalLock,
		maxLimit:         maxLimit,
		lsnWidth:         width,
		bufferBlockCount: opts.BufferBlockCount,
	}

	var mr MasterRecord
	if opts.NextLSNSeed.IsInvalid() {
		buf := make([]byte, w.blockSize())
		if err := w.blockIO.ReadBlocks(buf, 0, 1); err != nil {
			return nil, ErrReadIOError
		}
		decoded, err := decodeMasterRecord(buf)
		if err != nil {
			return nil, err
		}
		mr = decoded
	} else {
		mr = emptyMasterRecord(width, opts.NextLSNSeed)
		if err := w.writeAndFlushMasterRecord(mr); err != nil {
			return nil, err
		}
	}

	w.onDiskMasterRecord = mr
	w.inMemoryMasterRecord = mr

	ab, err := blockio.NewAlignedBuffer(opts.BufferBlockCount * w.blockSize())
	if err != nil {
		return nil, ErrAllocationFailed
	}
	w.alignedBuffer = ab
	w.buffer = ab.Bytes()

	if mr.FirstLSN.IsInvalid() {
		w.appendOffset = 0
		w.bufferStartBlockID = 1
	} else {
		fileOffset := lsnFileOffsetForAppend(mr, w.blockSize())
		bs := uint64(w.blockSize())
		w.appendOffset = int(fileOffset % bs)
		w.bufferStartBlockID = (fileOffset / bs)

		if w.appendOffset != 0 {
			oneBlock := make([]byte, w.blockSize())
			if err := w.blockIO.ReadBlocks(oneBlock, w.bufferStartBlockID, 1); err != nil {
				ab.Close()
				return nil, ErrReadIOError
			}
			copy(w.buffer[:w.blockSize()], oneBlock)
		}

		// The last durable record's payload size is the next record's
		// prev_size: its frame spans last_flushed_lsn up to next_lsn.
		if d, err := lsn.Sub(mr.NextLSN, mr.LastFlushedLSN); err == nil {
			if v, err := d.CastToUint64(); err == nil && v >= SlotOverhead {
				w.lastFrameSize = uint32(v - SlotOverhead)
			}
		}
	}

	w.state = stateRunning
	return w, nil
}

// Deinitialize releases the append buffer. Recovery from a latched major
// scroll error requires destroying and re-initializing the instance
// (spec.md §7).
func (w *Wale) Deinitialize() error {
	w.lockGlobal()
	defer w.unlockGlobal()

	if w.state == stateDeinitialized {
		return nil
	}
	w.state = stateDeinitialized

	if w.alignedBuffer != nil {
		return w.alignedBuffer.Close()
	}
	return nil
}

// lsnFileOffsetForAppend computes the file offset of next_lsn, or block_size
// if the log is empty, per spec.md §4.6 step 2 / original_source's
// get_file_offset_for_next_log_sequence_number_to_append.
func lsnFileOffsetForAppend(mr MasterRecord, blockSize int) uint64 {
	if mr.FirstLSN.IsInvalid() {
		return uint64(blockSize)
	}
	diff, err := lsn.Sub(mr.NextLSN, mr.FirstLSN)
	if err != nil {
		// Unreachable under correct bookkeeping: next_lsn >= first_lsn always.
		return uint64(blockSize)
	}
	v, _ := diff.CastToUint64()
	return v + uint64(blockSize)
}

// fileOffsetOfLSN computes the file offset of the record at l, given it
// lies in [first, next).
func fileOffsetOfLSN(l, first lsn.LSN, blockSize int) (uint64, error) {
	diff, err := lsn.Sub(l, first)
	if err != nil {
		return 0, ErrParamInvalid
	}
	v, err := diff.CastToUint64()
	if err != nil {
		return 0, ErrParamInvalid
	}
	return v + uint64(blockSize), nil
}

func allOnes(width int) lsn.LSN {
	full := make([]byte, lsn.MaxWidthBytes)
	for i := 0; i < width; i++ {
		full[i] = 0xFF
	}
	return lsn.Deserialize(full)
}

func (w *Wale) writeAndFlushMasterRecord(mr MasterRecord) error {
	buf, err := encodeMasterRecord(mr, w.blockSize())
	if err != nil {
		return ErrAllocationFailed
	}
	if err := w.blockIO.WriteBlocks(buf, 0, 1); err != nil {
		return ErrWriteIOError
	}
	if err := w.blockIO.FlushAllWrites(); err != nil {
		return ErrWriteIOError
	}
	return nil
}

