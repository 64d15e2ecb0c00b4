// Package wire defines the MessagePack-encoded request/response protocol
// used to drive a write-ahead log engine over a network connection.
package wire

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgType represents the type of a protocol message
type MsgType uint8

const (
	MsgAppend              MsgType = 0x01
	MsgFlush               MsgType = 0x02
	MsgTruncate            MsgType = 0x03
	MsgGetFirstLSN         MsgType = 0x04
	MsgGetLastFlushedLSN   MsgType = 0x05
	MsgGetCheckPointLSN    MsgType = 0x06
	MsgGetNextLSN          MsgType = 0x07
	MsgGetLogRecordAt      MsgType = 0x08
	MsgGetNextLSNOf        MsgType = 0x09
	MsgGetPrevLSNOf        MsgType = 0x0A
	MsgValidateLogRecordAt MsgType = 0x0B
	MsgGetLSNWidth         MsgType = 0x0C

	MsgOK    MsgType = 0x10
	MsgLSN   MsgType = 0x11
	MsgBytes MsgType = 0x12
	MsgError MsgType = 0x13
	MsgWidth MsgType = 0x14

	MsgPing MsgType = 0x20
	MsgPong MsgType = 0x21
)

// Message represents a protocol message
type Message struct {
	Type    MsgType
	Payload []byte
}

// AppendRequest asks the server to append a record and assign it an LSN.
// IsCheckpoint marks the record as the new checkpoint LSN, per spec.md
// §4.6's append_log_record(payload, size, is_checkpoint).
type AppendRequest struct {
	Payload      []byte `msgpack:"payload"`
	IsCheckpoint bool   `msgpack:"is_checkpoint"`
}

// LSNQueryRequest carries a single LSN argument, used by GetLogRecordAt,
// GetNextLSNOf, GetPrevLSNOf and ValidateLogRecordAt.
type LSNQueryRequest struct {
	At []byte `msgpack:"at"`
}

// LSNMessage carries a single serialized LSN, returned by every operation
// that hands back a log position.
type LSNMessage struct {
	LSN []byte `msgpack:"lsn"`
}

// BytesMessage carries an opaque byte payload, returned by GetLogRecordAt.
type BytesMessage struct {
	Data []byte `msgpack:"data"`
}

// WidthMessage carries a single integer, returned by GetLSNWidth.
type WidthMessage struct {
	Width uint32 `msgpack:"width"`
}

// OKMessage represents a successful execution with no return value (Flush,
// Truncate, a successful Validate).
type OKMessage struct{}

// ErrorMessage represents an error response, tagged with the engine's
// stable error code taxonomy so clients can distinguish corruption from a
// transient I/O failure without string matching.
type ErrorMessage struct {
	Code    uint8  `msgpack:"code"`
	Message string `msgpack:"message"`
}

// Encode encodes a message using MessagePack
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode decodes a message using MessagePack
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// EncodeMessage encodes a complete message with type
func EncodeMessage(msgType MsgType, payload interface{}) ([]byte, error) {
	pay, err := Encode(payload)
	if err != nil {
		return nil, err
	}

	msg := Message{
		Type:    msgType,
		Payload: pay,
	}

	return Encode(msg)
}

// DecodeMessage decodes a complete message
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := Decode(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NewErrorMessage creates a new error message
func NewErrorMessage(code uint8, message string) *ErrorMessage {
	return &ErrorMessage{
		Code:    code,
		Message: message,
	}
}

// NewLSNMessage wraps a serialized LSN for transport.
func NewLSNMessage(lsnBytes []byte) *LSNMessage {
	return &LSNMessage{LSN: lsnBytes}
}

// NewBytesMessage wraps an opaque byte payload for transport.
func NewBytesMessage(data []byte) *BytesMessage {
	return &BytesMessage{Data: data}
}

// NewWidthMessage wraps an integer width for transport.
func NewWidthMessage(width int) *WidthMessage {
	return &WidthMessage{Width: uint32(width)}
}
