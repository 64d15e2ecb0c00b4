package wale

// scrollLocked writes the oldest n full blocks of the append buffer out to
// disk and slides the buffer window forward by n blocks, freeing that much
// space at the tail for further appends. The caller must hold both the
// global mutex and the append buffer lock in exclusive mode.
//
// On a write failure this latches majorScrollError: a scroll that cannot
// complete leaves the in-memory and on-disk views unreconcilable, so the
// instance can no longer make forward progress on append or flush (spec.md
// §7); reads remain valid since they only touch already durable bytes,
// while TruncateLogRecords refuses once the error is latched.
func (w *Wale) scrollLocked(n int) error {
	if n <= 0 {
		return nil
	}
	bs := w.blockSize()
	out := make([]byte, n*bs)
	copy(out, w.buffer[:n*bs])

	if err := w.blockIO.WriteBlocks(out, w.bufferStartBlockID, n); err != nil {
		w.majorScrollError = true
		return ErrWriteIOError
	}

	copy(w.buffer, w.buffer[n*bs:])
	tail := w.buffer[w.capacity()-n*bs:]
	for i := range tail {
		tail[i] = 0
	}

	w.bufferStartBlockID += uint64(n)
	w.appendOffset -= n * bs

	return nil
}

// scrollableBlocksLocked returns the number of whole blocks currently
// preceding append_offset: these hold only already-assigned record bytes
// and are safe to scroll out, unlike the partial block append_offset falls
// within.
func (w *Wale) scrollableBlocksLocked() int {
	return w.appendOffset / w.blockSize()
}

// ensureRoomLocked scrolls out as many full blocks as needed (and
// available) so that at least `need` bytes are free after append_offset.
// The caller holds the global mutex and must hold the buffer lock in
// exclusive mode across this call, since scrollLocked mutates buffer
// contents.
func (w *Wale) ensureRoomLocked(need int) error {
	for w.capacity()-w.appendOffset < need {
		scrollable := w.scrollableBlocksLocked()
		if scrollable == 0 {
			// Only a partial block precedes append_offset, so no block can
			// be scrolled out to make room.
			return ErrAllocationFailed
		}
		if err := w.scrollLocked(scrollable); err != nil {
			return err
		}
	}
	return nil
}
