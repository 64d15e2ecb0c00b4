// Package checksum provides the CRC-32 (IEEE) primitive WALe uses to protect
// the master record and every log record's header and payload. It is the
// concrete instance of the CRC collaborator spec.md leaves external.
package checksum

import (
	"hash/crc32"
	"io"
)

// IEEE computes the standard CRC-32 (IEEE polynomial, init 0xFFFFFFFF, final
// XOR 0xFFFFFFFF) checksum of data, matching pkg/storage/wal.go's use of
// crc32.ChecksumIEEE for WAL record framing.
func IEEE(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Writer accumulates a running CRC-32 (IEEE) over bytes streamed through it,
// without retaining the bytes themselves. It is used by operations that must
// verify a payload's checksum without materializing the payload in memory,
// such as validate_log_record_at in spec.md §4.4.
type Writer struct {
	table *crc32.Table
	sum   uint32
}

// NewWriter returns a Writer ready to accumulate a CRC-32 (IEEE) checksum.
func NewWriter() *Writer {
	return &Writer{table: crc32.IEEETable}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.sum = crc32.Update(w.sum, w.table, p)
	return len(p), nil
}

// Sum32 returns the checksum accumulated so far.
func (w *Writer) Sum32() uint32 {
	return w.sum
}

var _ io.Writer = (*Writer)(nil)
