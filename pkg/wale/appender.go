package wale

import "github.com/cobaltdb/wale/pkg/lsn"

// AppendLogRecord appends payload to the log and returns the LSN assigned
// to it, per spec.md §4.6:
//  1. reject if not running or latched with a major scroll error
//  2. assign the next LSN and frame the record (header + payload + CRC)
//  3. verify the assignment does not exceed max_limit
//  4. reserve disjoint buffer space for the frame; while the frame does not
//     fit in the space left, upgrade to an exclusive hold, copy the part
//     that fits up to the buffer's end, scroll the full blocks to disk, and
//     downgrade back to shared
//  5. advance the in-memory master record — marking it the checkpoint LSN
//     when isCheckpoint is set — release the global mutex, and copy the
//     rest of the frame into the buffer under only the shared buffer hold —
//     concurrent appenders copy into disjoint regions in parallel
func (w *Wale) AppendLogRecord(payload []byte, isCheckpoint bool) (lsn.LSN, error) {
	w.lockGlobal()

	if w.state != stateRunning {
		w.unlockGlobal()
		return lsn.Invalid, ErrNotRunning
	}
	if w.majorScrollError {
		w.unlockGlobal()
		return lsn.Invalid, ErrMajorScrollError
	}

	assigned := w.inMemoryMasterRecord.NextLSN
	frame := buildRecordFrame(w.lastFrameSize, payload)

	newNext, lerr := lsn.AddWithLimit(assigned, lsn.FromUint64(uint64(len(frame))), w.maxLimit)
	if lerr != nil {
		w.unlockGlobal()
		return lsn.Invalid, ErrParamInvalid
	}

	w.bufferLock.RLock()
	rest := frame
	for w.capacity()-w.appendOffset < len(rest) {
		// The frame crosses the end of the buffer: copy the part that fits,
		// scroll every full block out, and continue with the remainder.
		w.bufferLock.Upgrade()
		n := copy(w.buffer[w.appendOffset:], rest)
		w.appendOffset += n
		rest = rest[n:]
		if err := w.scrollLocked(w.scrollableBlocksLocked()); err != nil {
			w.bufferLock.Unlock()
			w.unlockGlobal()
			return lsn.Invalid, err
		}
		w.bufferLock.Downgrade()
	}

	region := w.buffer[w.appendOffset : w.appendOffset+len(rest)]
	w.appendOffset += len(rest)

	if w.inMemoryMasterRecord.FirstLSN.IsInvalid() {
		w.inMemoryMasterRecord.FirstLSN = assigned
	}
	if isCheckpoint {
		w.inMemoryMasterRecord.CheckPointLSN = assigned
	}
	w.inMemoryMasterRecord.LastFlushedLSN = assigned
	w.inMemoryMasterRecord.NextLSN = newNext
	w.lastFrameSize = uint32(len(payload))

	w.unlockGlobal()

	copy(region, rest)
	w.bufferLock.RUnlock()

	return assigned, nil
}
