package blockio

// AlignedBuffer wraps a page-aligned byte slice backing a WALe append
// buffer (spec.md §3.4 requires the buffer be page-aligned).
type AlignedBuffer struct {
	buf     []byte
	mmapped bool
}

// Bytes returns the underlying buffer.
func (a *AlignedBuffer) Bytes() []byte {
	return a.buf
}

// Close releases the underlying memory, if any was mapped.
func (a *AlignedBuffer) Close() error {
	return a.release()
}
