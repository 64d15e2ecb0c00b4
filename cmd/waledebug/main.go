// Command waledebug runs a short scripted append/flush/read/truncate
// session against a disk-backed log, printing each step's outcome.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wale"
)

func main() {
	path := "./wale-debug.log"
	os.Remove(path)

	fmt.Println("=== Test: Append, Flush, Read, Truncate ===")

	blockIO, err := blockio.OpenDisk(path, 4096)
	if err != nil {
		log.Fatalf("Failed to open: %v", err)
	}

	w, err := wale.Initialize(blockIO, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: 8,
	})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	fmt.Println("\n1. APPEND:")
	var appended []lsn.LSN
	checkpoints := map[string]bool{"beta": true}
	for _, msg := range []string{"alpha", "beta", "gamma"} {
		at, err := w.AppendLogRecord([]byte(msg), checkpoints[msg])
		if err != nil {
			log.Fatalf("append failed: %v", err)
		}
		appended = append(appended, at)
		fmt.Printf("   appended %q at %s\n", msg, at)
	}

	fmt.Println("\n2. FLUSH:")
	if err := w.FlushAllLogRecords(); err != nil {
		log.Fatalf("flush failed: %v", err)
	}
	fmt.Printf("   last flushed lsn: %s\n", w.GetLastFlushedLSN())
	fmt.Printf("   checkpoint lsn:   %s\n", w.GetCheckPointLSN())

	fmt.Println("\n3. READ BACK:")
	printRecords(w, appended)

	fmt.Println("\n4. TRUNCATE (next_lsn is preserved):")
	nextBefore := w.GetNextLSN()
	if err := w.TruncateLogRecords(); err != nil {
		log.Fatalf("truncate failed: %v", err)
	}
	fmt.Printf("   first lsn is now:  %s\n", w.GetFirstLSN())
	fmt.Printf("   next lsn unchanged: %v\n", nextBefore.Compare(w.GetNextLSN()) == 0)

	fmt.Println("\n5. READ AFTER TRUNCATE (old LSNs are gone):")
	printRecords(w, appended)

	if err := w.Deinitialize(); err != nil {
		log.Fatalf("deinitialize failed: %v", err)
	}
	os.Remove(path)

	fmt.Println("\nAll operations completed.")
}

func printRecords(w *wale.Wale, lsns []lsn.LSN) {
	for _, at := range lsns {
		data, err := w.GetLogRecordAt(at)
		if err != nil {
			fmt.Printf("   %s: %v\n", at, err)
			continue
		}
		fmt.Printf("   %s: %q\n", at, data)
	}
}
