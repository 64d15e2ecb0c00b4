// Package server exposes a write-ahead log engine over a length-prefixed
// MessagePack protocol on a TCP connection.
package server

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wale"
	"github.com/cobaltdb/wale/pkg/wire"
)

var (
	ErrServerClosed = errors.New("server is closed")
)

// Server exposes a *wale.Wale instance to remote clients.
type Server struct {
	listener net.Listener
	w        *wale.Wale
	lsnWidth int
	clients  map[uint64]*ClientConn
	nextID   uint64
	mu       sync.RWMutex
	closed   bool
}

// Config contains server configuration.
type Config struct {
	Address string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address: ":4420",
	}
}

// New creates a new server fronting w.
func New(w *wale.Wale, config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		w:        w,
		lsnWidth: w.GetLSNWidth(),
		clients:  make(map[uint64]*ClientConn),
	}, nil
}

// Listen starts the server, blocking until it is closed.
func (s *Server) Listen(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	return s.acceptLoop()
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed {
				return nil
			}
			return err
		}

		s.mu.Lock()
		s.nextID++
		clientID := s.nextID
		client := &ClientConn{
			ID:     clientID,
			Conn:   conn,
			Server: s,
			reader: bufio.NewReader(conn),
		}
		s.clients[clientID] = client
		s.mu.Unlock()

		go client.Handle()
	}
}

// Close closes the server and every open client connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	for _, client := range s.clients {
		client.Conn.Close()
	}

	if s.listener != nil {
		s.listener.Close()
	}

	return nil
}

// removeClient removes a client connection.
func (s *Server) removeClient(id uint64) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// ClientConn represents a single client connection.
type ClientConn struct {
	ID     uint64
	Conn   net.Conn
	Server *Server
	reader *bufio.Reader
}

// Handle services requests from one client until it disconnects.
func (c *ClientConn) Handle() {
	defer func() {
		c.Conn.Close()
		c.Server.removeClient(c.ID)
	}()

	for {
		var length uint32
		if err := binary.Read(c.reader, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				return
			}
			c.sendError(wale.ParamInvalid, err.Error())
			continue
		}

		msgType, err := c.reader.ReadByte()
		if err != nil {
			c.sendError(wale.ParamInvalid, err.Error())
			continue
		}

		payload := make([]byte, length-1)
		if _, err := io.ReadFull(c.reader, payload); err != nil {
			c.sendError(wale.ParamInvalid, err.Error())
			continue
		}

		response := c.handleMessage(wire.MsgType(msgType), payload)

		if err := c.sendMessage(response); err != nil {
			return
		}
	}
}

func (c *ClientConn) decodeLSN(b []byte) lsn.LSN {
	return lsn.Deserialize(b)
}

func (c *ClientConn) encodeLSN(l lsn.LSN) []byte {
	b, err := l.Serialize(c.Server.lsnWidth)
	if err != nil {
		// l exceeds the configured width; transport it at full width
		// rather than silently truncating.
		full, _ := l.Serialize(lsn.MaxWidthBytes)
		return full
	}
	return b
}

// handleMessage dispatches a single decoded request to the engine and
// returns the value to encode as a response.
func (c *ClientConn) handleMessage(msgType wire.MsgType, payload []byte) interface{} {
	w := c.Server.w

	switch msgType {
	case wire.MsgPing:
		return wire.MsgPong

	case wire.MsgAppend:
		var req wire.AppendRequest
		if err := wire.Decode(payload, &req); err != nil {
			return wire.NewErrorMessage(uint8(wale.ParamInvalid), err.Error())
		}
		assigned, err := w.AppendLogRecord(req.Payload, req.IsCheckpoint)
		if err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return wire.NewLSNMessage(c.encodeLSN(assigned))

	case wire.MsgFlush:
		if err := w.FlushAllLogRecords(); err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return &wire.OKMessage{}

	case wire.MsgTruncate:
		if err := w.TruncateLogRecords(); err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return &wire.OKMessage{}

	case wire.MsgGetFirstLSN:
		return wire.NewLSNMessage(c.encodeLSN(w.GetFirstLSN()))

	case wire.MsgGetLastFlushedLSN:
		return wire.NewLSNMessage(c.encodeLSN(w.GetLastFlushedLSN()))

	case wire.MsgGetCheckPointLSN:
		return wire.NewLSNMessage(c.encodeLSN(w.GetCheckPointLSN()))

	case wire.MsgGetNextLSN:
		return wire.NewLSNMessage(c.encodeLSN(w.GetNextLSN()))

	case wire.MsgGetLogRecordAt:
		var req wire.LSNQueryRequest
		if err := wire.Decode(payload, &req); err != nil {
			return wire.NewErrorMessage(uint8(wale.ParamInvalid), err.Error())
		}
		data, err := w.GetLogRecordAt(c.decodeLSN(req.At))
		if err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return wire.NewBytesMessage(data)

	case wire.MsgGetNextLSNOf:
		var req wire.LSNQueryRequest
		if err := wire.Decode(payload, &req); err != nil {
			return wire.NewErrorMessage(uint8(wale.ParamInvalid), err.Error())
		}
		next, err := w.GetNextLSNOf(c.decodeLSN(req.At))
		if err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return wire.NewLSNMessage(c.encodeLSN(next))

	case wire.MsgGetPrevLSNOf:
		var req wire.LSNQueryRequest
		if err := wire.Decode(payload, &req); err != nil {
			return wire.NewErrorMessage(uint8(wale.ParamInvalid), err.Error())
		}
		prev, err := w.GetPrevLSNOf(c.decodeLSN(req.At))
		if err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return wire.NewLSNMessage(c.encodeLSN(prev))

	case wire.MsgGetLSNWidth:
		return wire.NewWidthMessage(w.GetLSNWidth())

	case wire.MsgValidateLogRecordAt:
		var req wire.LSNQueryRequest
		if err := wire.Decode(payload, &req); err != nil {
			return wire.NewErrorMessage(uint8(wale.ParamInvalid), err.Error())
		}
		if err := w.ValidateLogRecordAt(c.decodeLSN(req.At)); err != nil {
			return wire.NewErrorMessage(uint8(wale.CodeOf(err)), err.Error())
		}
		return &wire.OKMessage{}

	default:
		return wire.NewErrorMessage(uint8(wale.ParamInvalid), fmt.Sprintf("unknown message type: %d", msgType))
	}
}

// sendMessage encodes and writes a response to the client.
func (c *ClientConn) sendMessage(msg interface{}) error {
	var msgType wire.MsgType
	var payload interface{}

	switch m := msg.(type) {
	case wire.MsgType:
		msgType = m
		payload = nil
	case *wire.LSNMessage:
		msgType = wire.MsgLSN
		payload = m
	case *wire.BytesMessage:
		msgType = wire.MsgBytes
		payload = m
	case *wire.WidthMessage:
		msgType = wire.MsgWidth
		payload = m
	case *wire.OKMessage:
		msgType = wire.MsgOK
		payload = m
	case *wire.ErrorMessage:
		msgType = wire.MsgError
		payload = m
	default:
		return fmt.Errorf("unknown message type: %T", msg)
	}

	var payData []byte
	var err error
	if payload != nil {
		payData, err = wire.Encode(payload)
		if err != nil {
			return err
		}
	}

	length := uint32(1 + len(payData))
	if err := binary.Write(c.Conn, binary.LittleEndian, length); err != nil {
		return err
	}

	if err := binary.Write(c.Conn, binary.LittleEndian, msgType); err != nil {
		return err
	}

	if len(payData) > 0 {
		if _, err := c.Conn.Write(payData); err != nil {
			return err
		}
	}

	return nil
}

// sendError sends an error message to the client.
func (c *ClientConn) sendError(code wale.ErrorCode, message string) {
	c.sendMessage(wire.NewErrorMessage(uint8(code), message))
}
