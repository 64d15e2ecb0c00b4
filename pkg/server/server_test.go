package server

import (
	"testing"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wale"
	"github.com/cobaltdb/wale/pkg/wire"
)

func newTestInstance(t *testing.T) *wale.Wale {
	t.Helper()
	mem := blockio.NewMemory(512)
	w, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: 4,
	})
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	return w
}

func TestNewServer(t *testing.T) {
	w := newTestInstance(t)

	srv, err := New(w, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if srv == nil {
		t.Fatal("Server is nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Address != ":4420" {
		t.Errorf("Expected address ':4420', got %q", config.Address)
	}
}

func TestServerClose(t *testing.T) {
	w := newTestInstance(t)

	srv, err := New(w, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Failed to close server: %v", err)
	}

	// Close again should not error
	if err := srv.Close(); err != nil {
		t.Fatalf("Failed to close server twice: %v", err)
	}
}

func TestServerWithNilConfig(t *testing.T) {
	w := newTestInstance(t)

	srv, err := New(w, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if srv == nil {
		t.Fatal("Server is nil")
	}
}

func TestHandlePing(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)
	client := &ClientConn{ID: 1, Server: srv}

	response := client.handleMessage(wire.MsgPing, nil)
	if response != wire.MsgPong {
		t.Errorf("Expected Pong, got %v", response)
	}
}

func TestHandleUnknownMessage(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)
	client := &ClientConn{ID: 1, Server: srv}

	response := client.handleMessage(wire.MsgType(0xFE), nil)
	errMsg, ok := response.(*wire.ErrorMessage)
	if !ok {
		t.Fatal("Expected error message")
	}
	if errMsg.Code != uint8(wale.ParamInvalid) {
		t.Errorf("Expected error code %d, got %d", wale.ParamInvalid, errMsg.Code)
	}
}

func TestHandleAppendThenFlushThenRead(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)
	client := &ClientConn{ID: 1, Server: srv}

	appendPayload, _ := wire.Encode(&wire.AppendRequest{Payload: []byte("hello")})
	resp := client.handleMessage(wire.MsgAppend, appendPayload)
	lsnMsg, ok := resp.(*wire.LSNMessage)
	if !ok {
		t.Fatalf("Expected LSN message, got %T", resp)
	}

	flushResp := client.handleMessage(wire.MsgFlush, nil)
	if _, ok := flushResp.(*wire.OKMessage); !ok {
		t.Fatalf("Expected OK message, got %T", flushResp)
	}

	queryPayload, _ := wire.Encode(&wire.LSNQueryRequest{At: lsnMsg.LSN})
	readResp := client.handleMessage(wire.MsgGetLogRecordAt, queryPayload)
	bytesMsg, ok := readResp.(*wire.BytesMessage)
	if !ok {
		t.Fatalf("Expected bytes message, got %T", readResp)
	}
	if string(bytesMsg.Data) != "hello" {
		t.Errorf("Expected payload %q, got %q", "hello", bytesMsg.Data)
	}
}

func TestHandleGetLogRecordAtInvalidLSN(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)
	client := &ClientConn{ID: 1, Server: srv}

	queryPayload, _ := wire.Encode(&wire.LSNQueryRequest{At: make([]byte, 8)})
	response := client.handleMessage(wire.MsgGetLogRecordAt, queryPayload)
	errMsg, ok := response.(*wire.ErrorMessage)
	if !ok {
		t.Fatalf("Expected error message, got %T", response)
	}
	if errMsg.Code != uint8(wale.ParamInvalid) {
		t.Errorf("Expected error code %d, got %d", wale.ParamInvalid, errMsg.Code)
	}
}

func TestHandleInvalidAppendPayload(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)
	client := &ClientConn{ID: 1, Server: srv}

	response := client.handleMessage(wire.MsgAppend, []byte{0xFF, 0xFE})
	errMsg, ok := response.(*wire.ErrorMessage)
	if !ok {
		t.Fatal("Expected error message")
	}
	if errMsg.Code != uint8(wale.ParamInvalid) {
		t.Errorf("Expected error code %d, got %d", wale.ParamInvalid, errMsg.Code)
	}
}

func TestRemoveClient(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)

	srv.mu.Lock()
	srv.clients[1] = &ClientConn{ID: 1}
	srv.mu.Unlock()

	srv.removeClient(1)

	srv.mu.RLock()
	if _, exists := srv.clients[1]; exists {
		t.Error("Client should have been removed")
	}
	srv.mu.RUnlock()
}

func TestHandleGetFirstAndNextLSN(t *testing.T) {
	w := newTestInstance(t)
	srv, _ := New(w, nil)
	client := &ClientConn{ID: 1, Server: srv}

	appendPayload, _ := wire.Encode(&wire.AppendRequest{Payload: []byte("x")})
	client.handleMessage(wire.MsgAppend, appendPayload)
	client.handleMessage(wire.MsgFlush, nil)

	firstResp := client.handleMessage(wire.MsgGetFirstLSN, nil)
	if _, ok := firstResp.(*wire.LSNMessage); !ok {
		t.Fatalf("Expected LSN message, got %T", firstResp)
	}

	nextResp := client.handleMessage(wire.MsgGetNextLSN, nil)
	if _, ok := nextResp.(*wire.LSNMessage); !ok {
		t.Fatalf("Expected LSN message, got %T", nextResp)
	}
}
