package wale

import "github.com/cobaltdb/wale/pkg/lsn"

// TruncateLogRecords resets the log to empty while preserving next_lsn, so
// LSNs already handed out to callers are never reused, per spec.md §4.8.
// It takes the exclusive buffer lock and the flushed_view write lock,
// installs a master record with first/check_point/last_flushed all
// lsn.Invalid and next_lsn unchanged, and resets the append buffer window
// to start fresh at block 1.
//
// Per spec.md §4.8 this refuses once majorScrollError is latched: unlike
// reads, truncate here also resets the append buffer's bookkeeping, so a
// scroll that already left the buffer and disk irreconcilable must not be
// papered over by a truncate that assumes a clean buffer.
func (w *Wale) TruncateLogRecords() error {
	w.lockGlobal()
	defer w.unlockGlobal()

	if w.state != stateRunning {
		return ErrNotRunning
	}
	if w.majorScrollError {
		return ErrMajorScrollError
	}

	w.bufferLock.Lock()
	defer w.bufferLock.Unlock()

	newMR := MasterRecord{
		LSNWidth:       w.lsnWidth,
		FirstLSN:       lsn.Invalid,
		CheckPointLSN:  lsn.Invalid,
		LastFlushedLSN: lsn.Invalid,
		NextLSN:        w.inMemoryMasterRecord.NextLSN,
	}

	if err := w.writeAndFlushMasterRecord(newMR); err != nil {
		return err
	}

	w.flushedViewLock.Lock()
	w.onDiskMasterRecord = newMR
	w.flushedViewLock.Unlock()

	w.inMemoryMasterRecord = newMR
	w.lastFrameSize = 0
	w.appendOffset = 0
	w.bufferStartBlockID = 1

	return nil
}
