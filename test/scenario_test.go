// Package test exercises the wale engine end to end, across module
// boundaries, the way a consumer embedding it would.
package test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wale"
)

func openMemoryLog(t *testing.T, blockSize, bufferBlocks int) (*wale.Wale, *blockio.MemoryBlockIO) {
	t.Helper()
	mem := blockio.NewMemory(blockSize)
	w, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: bufferBlocks,
	})
	require.NoError(t, err)
	return w, mem
}

// S1: append records smaller than the buffer, flush once, read every
// record back in order.
func TestScenarioAppendFlushReadInOrder(t *testing.T) {
	w, _ := openMemoryLog(t, 256, 8)

	messages := []string{"one", "two", "three", "four", "five"}
	var lsns []lsn.LSN
	for _, m := range messages {
		at, err := w.AppendLogRecord([]byte(m), false)
		require.NoError(t, err)
		lsns = append(lsns, at)
	}
	require.NoError(t, w.FlushAllLogRecords())

	for i, at := range lsns {
		data, err := w.GetLogRecordAt(at)
		require.NoError(t, err)
		require.Equal(t, messages[i], string(data))
	}
}

// S2: reopen a log written in a prior "process" by re-initializing over
// the same backing store, and confirm the durable state is recovered.
func TestScenarioReopenRecoversMasterRecord(t *testing.T) {
	mem := blockio.NewMemory(512)
	w1, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: 4,
	})
	require.NoError(t, err)

	l1, err := w1.AppendLogRecord([]byte("persisted"), false)
	require.NoError(t, err)
	require.NoError(t, w1.FlushAllLogRecords())
	require.NoError(t, w1.Deinitialize())

	w2, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.Invalid,
		BufferBlockCount: 4,
	})
	require.NoError(t, err)

	data, err := w2.GetLogRecordAt(l1)
	require.NoError(t, err)
	require.Equal(t, "persisted", string(data))
	require.Equal(t, 0, w2.GetFirstLSN().Compare(l1))
}

// S3: appends of nearly one block each overrun a two-block buffer and force
// repeated scrolling before a flush; every record must still round-trip
// afterward.
func TestScenarioAppendAcrossManyScrolls(t *testing.T) {
	const blockSize = 128
	w, _ := openMemoryLog(t, blockSize, 2)

	payload := make([]byte, blockSize-wale.SlotOverhead-1)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	var lsns []lsn.LSN
	for i := 0; i < 50; i++ {
		at, err := w.AppendLogRecord(payload, false)
		require.NoError(t, err)
		lsns = append(lsns, at)
	}
	require.NoError(t, w.FlushAllLogRecords())

	for _, at := range lsns {
		data, err := w.GetLogRecordAt(at)
		require.NoError(t, err)
		require.Equal(t, payload, data)
	}
}

// S4: a bit flip in a durable payload must be caught by validation and
// read, without corrupting neighboring records.
func TestScenarioCorruptionIsDetectedAndIsolated(t *testing.T) {
	const blockSize = 256
	w, mem := openMemoryLog(t, blockSize, 4)

	l1, err := w.AppendLogRecord([]byte("good-one"), false)
	require.NoError(t, err)
	l2, err := w.AppendLogRecord([]byte("good-two"), false)
	require.NoError(t, err)
	require.NoError(t, w.FlushAllLogRecords())

	diff, err := lsn.Sub(l1, w.GetFirstLSN())
	require.NoError(t, err)
	diffBytes, err := diff.CastToUint64()
	require.NoError(t, err)
	offset := int64(blockSize) + int64(diffBytes)
	mem.FlipByte(offset + wale.HeaderSize + 3)

	_, err = w.GetLogRecordAt(l1)
	require.ErrorIs(t, err, wale.ErrLogRecordCorrupted)

	data2, err := w.GetLogRecordAt(l2)
	require.NoError(t, err)
	require.Equal(t, "good-two", string(data2))
}

// S5: truncating resets the log to empty but preserves next_lsn, so a
// record appended right after truncate picks up exactly where the old
// log left off (spec.md §4.8, §8 scenario S5).
func TestScenarioTruncatePreservesNextLSN(t *testing.T) {
	w, _ := openMemoryLog(t, 256, 4)

	l1, err := w.AppendLogRecord([]byte("old"), false)
	require.NoError(t, err)
	l2, err := w.AppendLogRecord([]byte("world"), true)
	require.NoError(t, err)
	require.NoError(t, w.FlushAllLogRecords())

	nextBeforeTruncate := w.GetNextLSN()

	require.NoError(t, w.TruncateLogRecords())

	require.True(t, w.GetFirstLSN().IsInvalid())
	require.True(t, w.GetLastFlushedLSN().IsInvalid())
	require.True(t, w.GetCheckPointLSN().IsInvalid())
	require.Equal(t, 0, w.GetNextLSN().Compare(nextBeforeTruncate))

	_, err = w.GetLogRecordAt(l1)
	require.ErrorIs(t, err, wale.ErrParamInvalid)
	_, err = w.GetLogRecordAt(l2)
	require.ErrorIs(t, err, wale.ErrParamInvalid)

	l3, err := w.AppendLogRecord([]byte("x"), false)
	require.NoError(t, err)
	require.Equal(t, 0, l3.Compare(nextBeforeTruncate))
	require.NoError(t, w.FlushAllLogRecords())

	data3, err := w.GetLogRecordAt(l3)
	require.NoError(t, err)
	require.Equal(t, "x", string(data3))
}
