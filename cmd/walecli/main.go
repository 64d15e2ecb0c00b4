// Command walecli sends a single request to a walesrv instance and prints
// the response.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wire"
)

func main() {
	var (
		address      = flag.String("addr", "localhost:4420", "server address")
		cmd          = flag.String("cmd", "ping", "one of: ping, append, flush, truncate, first, next, get")
		payload      = flag.String("payload", "", "record payload for append")
		isCheckpoint = flag.Bool("checkpoint", false, "mark an append as a checkpoint record")
		at           = flag.Uint64("at", 0, "LSN argument for get")
	)
	flag.Parse()

	conn, err := net.Dial("tcp", *address)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	var msgType wire.MsgType
	var req interface{}

	switch *cmd {
	case "ping":
		msgType = wire.MsgPing
	case "append":
		msgType = wire.MsgAppend
		req = &wire.AppendRequest{Payload: []byte(*payload), IsCheckpoint: *isCheckpoint}
	case "flush":
		msgType = wire.MsgFlush
	case "truncate":
		msgType = wire.MsgTruncate
	case "first":
		msgType = wire.MsgGetFirstLSN
	case "next":
		msgType = wire.MsgGetNextLSN
	case "get":
		msgType = wire.MsgGetLogRecordAt
		b, _ := lsn.FromUint64(*at).Serialize(8)
		req = &wire.LSNQueryRequest{At: b}
	default:
		log.Fatalf("unknown command: %s", *cmd)
	}

	if err := sendRequest(conn, msgType, req); err != nil {
		log.Fatalf("Failed to send request: %v", err)
	}

	reply, err := readResponse(conn)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	printResponse(reply)
}

func sendRequest(conn net.Conn, msgType wire.MsgType, req interface{}) error {
	var payData []byte
	var err error
	if req != nil {
		payData, err = wire.Encode(req)
		if err != nil {
			return err
		}
	}

	length := uint32(1 + len(payData))
	if err := binary.Write(conn, binary.LittleEndian, length); err != nil {
		return err
	}
	if err := binary.Write(conn, binary.LittleEndian, msgType); err != nil {
		return err
	}
	if len(payData) > 0 {
		_, err = conn.Write(payData)
	}
	return err
}

func readResponse(conn net.Conn) (*wire.Message, error) {
	reader := bufio.NewReader(conn)

	var length uint32
	if err := binary.Read(reader, binary.LittleEndian, &length); err != nil {
		return nil, err
	}

	msgType, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length-1)
	if _, err := reader.Read(payload); err != nil {
		return nil, err
	}

	return &wire.Message{Type: wire.MsgType(msgType), Payload: payload}, nil
}

func printResponse(msg *wire.Message) {
	switch msg.Type {
	case wire.MsgPong:
		fmt.Println("pong")
	case wire.MsgOK:
		fmt.Println("ok")
	case wire.MsgLSN:
		var m wire.LSNMessage
		wire.Decode(msg.Payload, &m)
		fmt.Printf("lsn: %x\n", m.LSN)
	case wire.MsgBytes:
		var m wire.BytesMessage
		wire.Decode(msg.Payload, &m)
		fmt.Printf("data: %q\n", m.Data)
	case wire.MsgError:
		var m wire.ErrorMessage
		wire.Decode(msg.Payload, &m)
		fmt.Printf("error %d: %s\n", m.Code, m.Message)
	default:
		fmt.Printf("unrecognized message type: %d\n", msg.Type)
	}
}
