//go:build unix

package blockio

import "golang.org/x/sys/unix"

// NewAlignedBuffer allocates a page-aligned buffer of n bytes via an
// anonymous private mmap, the Go analogue of the original engine's
// aligned_alloc(OS_PAGE_SIZE, ...) for its append buffer (see
// original_source/src/wale_init.c). The returned AlignedBuffer must be
// released with Close to unmap the memory.
func NewAlignedBuffer(n int) (*AlignedBuffer, error) {
	if n <= 0 {
		return &AlignedBuffer{buf: nil}, nil
	}

	buf, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &AlignedBuffer{buf: buf, mmapped: true}, nil
}

func (a *AlignedBuffer) release() error {
	if a.buf == nil || !a.mmapped {
		return nil
	}
	return unix.Munmap(a.buf)
}
