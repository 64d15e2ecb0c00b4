package wale

// FlushAllLogRecords durably persists every record appended so far, per
// spec.md §4.7:
//  1. reject if not running or latched with a major scroll error
//  2. snapshot the in-memory master record as the flush target
//  3. take the append buffer lock in exclusive mode — waiting for every
//     in-progress appender to finish copying its frame into the buffer —
//     and copy out the buffer's unflushed bytes (full blocks plus the
//     current partial block)
//  4. write those bytes and fsync, then write and fsync a new master
//     record equal to the target, whose last_flushed_lsn is the most
//     recently assigned LSN
//  5. publish the new master record as the durable, reader-visible view
//
// A write failure here is reported but does not latch the fatal major
// scroll error: the in-memory buffer layout is unchanged, so a later retry
// can still succeed. Only a failed scroll desynchronizes buffer and disk
// layout irrecoverably.
func (w *Wale) FlushAllLogRecords() error {
	w.lockGlobal()
	defer w.unlockGlobal()

	if w.state != stateRunning {
		return ErrNotRunning
	}
	if w.majorScrollError {
		return ErrMajorScrollError
	}

	target := w.inMemoryMasterRecord
	if target.NextLSN.Compare(w.onDiskMasterRecord.NextLSN) == 0 {
		// No records have been assigned since the last flush; nothing to
		// push to disk.
		return nil
	}

	bs := w.blockSize()
	startBlockID := w.bufferStartBlockID
	appendOffset := w.appendOffset

	w.bufferLock.Lock()
	numBlocks := (appendOffset + bs - 1) / bs
	out := make([]byte, numBlocks*bs)
	copy(out, w.buffer[:numBlocks*bs])
	w.bufferLock.Unlock()

	if numBlocks > 0 {
		if err := w.blockIO.WriteBlocks(out, startBlockID, numBlocks); err != nil {
			return ErrWriteIOError
		}
		if err := w.blockIO.FlushAllWrites(); err != nil {
			return ErrWriteIOError
		}
	}

	newMR := target
	if err := w.writeAndFlushMasterRecord(newMR); err != nil {
		return err
	}

	w.flushedViewLock.Lock()
	w.onDiskMasterRecord = newMR
	w.flushedViewLock.Unlock()

	return nil
}
