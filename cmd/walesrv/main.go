// Command walesrv serves a write-ahead log over TCP.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/server"
	"github.com/cobaltdb/wale/pkg/wale"
)

func main() {
	var (
		dataFile    = flag.String("data", "./wale.log", "backing log file")
		address     = flag.String("addr", ":4420", "server address")
		blockSize   = flag.Int("block-size", 4096, "file block size in bytes")
		bufferBlocks = flag.Int("buffer-blocks", 16, "append buffer size in blocks")
	)
	flag.Parse()

	seed := firstRunSeed(*dataFile)

	blockIO, err := blockio.OpenDisk(*dataFile, *blockSize)
	if err != nil {
		log.Fatalf("Failed to open backing file: %v", err)
	}

	w, err := wale.Initialize(blockIO, wale.Options{
		NextLSNSeed:      seed,
		BufferBlockCount: *bufferBlocks,
	})
	if err != nil {
		log.Fatalf("Failed to initialize log: %v", err)
	}

	log.Printf("WALe server starting...")
	log.Printf("Backing file: %s", *dataFile)
	log.Printf("Listening on: %s", *address)

	srv, err := server.New(w, &server.Config{Address: *address})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down...")
		srv.Close()
		w.Deinitialize()
	}()

	if err := srv.Listen(*address); err != nil {
		log.Printf("Server error: %v", err)
	}
}

// firstRunSeed returns lsn.FromUint64(1) when the backing file does not yet
// exist, seeding a fresh log; an existing file is assumed to already carry
// a master record and is read instead.
func firstRunSeed(path string) lsn.LSN {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return lsn.FromUint64(1)
	}
	return lsn.Invalid
}
