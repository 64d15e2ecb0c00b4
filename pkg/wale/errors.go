package wale

import "errors"

// ErrorCode is the stable, wire-transportable classification of a WALe
// error, mirroring spec.md §6.3's error taxonomy. Library callers should
// prefer errors.Is against the sentinel errors below; ErrorCode exists for
// collaborators (pkg/wire, pkg/server) that need a small transportable value.
type ErrorCode uint8

const (
	NoError ErrorCode = iota
	ParamInvalid
	ReadIOError
	WriteIOError
	HeaderCorrupted
	LogRecordCorrupted
	MasterRecordCorrupted
	AllocationFailed
)

var (
	// ErrParamInvalid is returned for out-of-range queries or appends that
	// would exceed max_limit. Non-fatal.
	ErrParamInvalid = errors.New("wale: invalid parameter")
	// ErrReadIOError is returned when the underlying block I/O fails a read.
	ErrReadIOError = errors.New("wale: read I/O error")
	// ErrWriteIOError is returned when the underlying block I/O fails a write.
	ErrWriteIOError = errors.New("wale: write I/O error")
	// ErrHeaderCorrupted is returned when a record header's CRC fails to verify.
	ErrHeaderCorrupted = errors.New("wale: log record header corrupted")
	// ErrLogRecordCorrupted is returned when a record payload's CRC fails to verify.
	ErrLogRecordCorrupted = errors.New("wale: log record corrupted")
	// ErrMasterRecordCorrupted is returned when the master record's CRC fails to verify.
	ErrMasterRecordCorrupted = errors.New("wale: master record corrupted")
	// ErrAllocationFailed is returned when an in-memory allocation could not be made.
	ErrAllocationFailed = errors.New("wale: allocation failed")
	// ErrMajorScrollError is returned by append/flush once the instance has
	// latched its fatal major scroll error; truncate refuses with it too, and
	// only reads remain valid.
	ErrMajorScrollError = errors.New("wale: major scroll error, instance cannot make forward progress")
	// ErrNotRunning is returned when an operation is attempted on an
	// uninitialized or deinitialized instance.
	ErrNotRunning = errors.New("wale: instance is not running")
)

// CodeOf maps an error produced by this package to its ErrorCode, for
// collaborators that need a transportable classification.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, ErrParamInvalid):
		return ParamInvalid
	case errors.Is(err, ErrReadIOError):
		return ReadIOError
	case errors.Is(err, ErrWriteIOError):
		return WriteIOError
	case errors.Is(err, ErrHeaderCorrupted):
		return HeaderCorrupted
	case errors.Is(err, ErrLogRecordCorrupted):
		return LogRecordCorrupted
	case errors.Is(err, ErrMasterRecordCorrupted):
		return MasterRecordCorrupted
	case errors.Is(err, ErrAllocationFailed):
		return AllocationFailed
	default:
		return ParamInvalid
	}
}
