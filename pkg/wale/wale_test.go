package wale_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wale"
)

const testBlockSize = 512

func newTestWale(t *testing.T, bufferBlocks int) (*wale.Wale, *blockio.MemoryBlockIO) {
	t.Helper()
	mem := blockio.NewMemory(testBlockSize)
	w, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: bufferBlocks,
	})
	require.NoError(t, err)
	return w, mem
}

func TestAppendThenFlushThenRead(t *testing.T) {
	w, _ := newTestWale(t, 4)

	l1, err := w.AppendLogRecord([]byte("hello"), false)
	require.NoError(t, err)
	l2, err := w.AppendLogRecord([]byte("world"), false)
	require.NoError(t, err)
	require.True(t, l2.Greater(l1))

	require.NoError(t, w.FlushAllLogRecords())

	got1, err := w.GetLogRecordAt(l1)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got1)

	got2, err := w.GetLogRecordAt(l2)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got2)
}

func TestReadBeforeFlushIsNotVisible(t *testing.T) {
	w, _ := newTestWale(t, 4)

	l1, err := w.AppendLogRecord([]byte("unflushed"), false)
	require.NoError(t, err)

	_, err = w.GetLogRecordAt(l1)
	require.ErrorIs(t, err, wale.ErrParamInvalid)
}

func TestNextAndPrevLSNTraversal(t *testing.T) {
	w, _ := newTestWale(t, 4)

	l1, err := w.AppendLogRecord([]byte("a"), false)
	require.NoError(t, err)
	l2, err := w.AppendLogRecord([]byte("bb"), true)
	require.NoError(t, err)
	l3, err := w.AppendLogRecord([]byte("ccc"), false)
	require.NoError(t, err)
	require.NoError(t, w.FlushAllLogRecords())

	require.Equal(t, 0, w.GetCheckPointLSN().Compare(l2))

	next, err := w.GetNextLSNOf(l1)
	require.NoError(t, err)
	require.Equal(t, 0, next.Compare(l2))

	next2, err := w.GetNextLSNOf(l2)
	require.NoError(t, err)
	require.Equal(t, 0, next2.Compare(l3))

	// at == last_flushed returns Invalid with no error, per spec.md §4.4.
	next3, err := w.GetNextLSNOf(l3)
	require.NoError(t, err)
	require.True(t, next3.IsInvalid())

	prev, err := w.GetPrevLSNOf(l3)
	require.NoError(t, err)
	require.Equal(t, 0, prev.Compare(l2))

	// at == first returns Invalid with no error, per spec.md §4.4.
	prevFirst, err := w.GetPrevLSNOf(l1)
	require.NoError(t, err)
	require.True(t, prevFirst.IsInvalid())

	_, err = w.GetNextLSNOf(lsn.FromUint64(999999))
	require.ErrorIs(t, err, wale.ErrParamInvalid)
}

func TestValidateLogRecordAtDetectsCorruption(t *testing.T) {
	w, mem := newTestWale(t, 4)

	l1, err := w.AppendLogRecord([]byte("payload-data"), false)
	require.NoError(t, err)
	require.NoError(t, w.FlushAllLogRecords())

	require.NoError(t, w.ValidateLogRecordAt(l1))

	mem.FlipByte(testBlockSize + wale.HeaderSize + 2)
	require.ErrorIs(t, w.ValidateLogRecordAt(l1), wale.ErrLogRecordCorrupted)
}

func TestScrollAcrossManySmallBuffers(t *testing.T) {
	w, _ := newTestWale(t, 1)

	var written []lsn.LSN
	payload := make([]byte, testBlockSize/4)
	for i := range payload {
		payload[i] = byte(i)
	}
	for i := 0; i < 20; i++ {
		l, err := w.AppendLogRecord(payload, false)
		require.NoError(t, err)
		written = append(written, l)
	}
	require.NoError(t, w.FlushAllLogRecords())

	for i, l := range written {
		got, err := w.GetLogRecordAt(l)
		require.NoErrorf(t, err, "record %d", i)
		require.Equal(t, payload, got)
	}
}

func TestTruncateLogRecords(t *testing.T) {
	w, _ := newTestWale(t, 4)

	l1, err := w.AppendLogRecord([]byte("first"), false)
	require.NoError(t, err)
	l2, err := w.AppendLogRecord([]byte("second"), true)
	require.NoError(t, err)
	require.NoError(t, w.FlushAllLogRecords())

	nextBefore := w.GetNextLSN()

	require.NoError(t, w.TruncateLogRecords())

	require.True(t, w.GetFirstLSN().IsInvalid())
	require.True(t, w.GetLastFlushedLSN().IsInvalid())
	require.True(t, w.GetCheckPointLSN().IsInvalid())
	require.Equal(t, 0, w.GetNextLSN().Compare(nextBefore))

	_, err = w.GetLogRecordAt(l1)
	require.ErrorIs(t, err, wale.ErrParamInvalid)
	_, err = w.GetLogRecordAt(l2)
	require.ErrorIs(t, err, wale.ErrParamInvalid)

	l3, err := w.AppendLogRecord([]byte("third"), false)
	require.NoError(t, err)
	require.Equal(t, 0, l3.Compare(nextBefore))
	require.NoError(t, w.FlushAllLogRecords())

	got3, err := w.GetLogRecordAt(l3)
	require.NoError(t, err)
	require.Equal(t, []byte("third"), got3)
}

func TestTruncateRefusesAfterMajorScrollError(t *testing.T) {
	w, mem := newTestWale(t, 2)

	_, err := w.AppendLogRecord(make([]byte, testBlockSize-wale.SlotOverhead), false)
	require.NoError(t, err)
	require.NoError(t, mem.Close())

	_, err = w.AppendLogRecord(make([]byte, testBlockSize), false)
	require.Error(t, err)

	require.ErrorIs(t, w.TruncateLogRecords(), wale.ErrMajorScrollError)
}

func TestAppendRejectsBeyondMaxLimit(t *testing.T) {
	mem := blockio.NewMemory(testBlockSize)
	w, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: 2,
		MaxLimit:         lsn.FromUint64(10),
		LSNWidth:         8,
	})
	require.NoError(t, err)

	_, err = w.AppendLogRecord(make([]byte, 64), false)
	require.ErrorIs(t, err, wale.ErrParamInvalid)
}

func TestMajorScrollErrorBlocksFurtherAppends(t *testing.T) {
	w, mem := newTestWale(t, 2)

	// Fill the first block so the next append must scroll it out.
	_, err := w.AppendLogRecord(make([]byte, testBlockSize-wale.SlotOverhead), false)
	require.NoError(t, err)

	require.NoError(t, mem.Close())

	_, err = w.AppendLogRecord(make([]byte, testBlockSize), false)
	require.Error(t, err)

	_, err = w.AppendLogRecord([]byte("x"), false)
	require.ErrorIs(t, err, wale.ErrMajorScrollError)
}

func TestDeinitializeIsIdempotent(t *testing.T) {
	w, _ := newTestWale(t, 2)
	require.NoError(t, w.Deinitialize())
	require.NoError(t, w.Deinitialize())
}
