package blockio

import "sync"

// MemoryBlockIO implements BlockIO over an in-process growable byte slice,
// modeled on pkg/storage/memory.go's MemoryBackend but addressed in whole
// blocks. Useful for tests and for in-memory WALe instances.
type MemoryBlockIO struct {
	blockSize int
	data      []byte
	closed    bool
	mu        sync.RWMutex
}

// NewMemory creates a new in-memory block backend.
func NewMemory(blockSize int) *MemoryBlockIO {
	return &MemoryBlockIO{
		blockSize: blockSize,
		data:      make([]byte, 0),
	}
}

func (m *MemoryBlockIO) BlockSize() int { return m.blockSize }

func (m *MemoryBlockIO) ensureSizeLocked(end int64) {
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
}

func (m *MemoryBlockIO) ReadBlocks(buf []byte, blockID uint64, count int) error {
	if count < 0 {
		return ErrInvalidBlockID
	}
	if len(buf) < count*m.blockSize {
		return ErrShortBuffer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	offset := int64(blockID) * int64(m.blockSize)
	length := int64(count) * int64(m.blockSize)
	m.ensureSizeLocked(offset + length)

	copy(buf[:length], m.data[offset:offset+length])
	return nil
}

func (m *MemoryBlockIO) WriteBlocks(buf []byte, blockID uint64, count int) error {
	if count < 0 {
		return ErrInvalidBlockID
	}
	if len(buf) < count*m.blockSize {
		return ErrShortBuffer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	offset := int64(blockID) * int64(m.blockSize)
	length := int64(count) * int64(m.blockSize)
	m.ensureSizeLocked(offset + length)

	copy(m.data[offset:offset+length], buf[:length])
	return nil
}

func (m *MemoryBlockIO) FlushAllWrites() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *MemoryBlockIO) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// FlipByte flips one bit of the underlying storage at the given absolute
// byte offset, for corruption-injection tests (spec.md §8 scenario S4).
func (m *MemoryBlockIO) FlipByte(offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= 0 && offset < int64(len(m.data)) {
		m.data[offset] ^= 0x01
	}
}
