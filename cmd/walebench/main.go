// Command walebench measures append and flush throughput of the log
// engine against an in-memory backend.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cobaltdb/wale/pkg/blockio"
	"github.com/cobaltdb/wale/pkg/lsn"
	"github.com/cobaltdb/wale/pkg/wale"
)

var (
	flagHelp         bool
	flagRecords      int
	flagRecordSize   int
	flagBlockSize    int
	flagBufferBlocks int
	flagFlushEvery   int
)

func init() {
	flag.BoolVar(&flagHelp, "help", false, "Show help")
	flag.BoolVar(&flagHelp, "h", false, "Show help (short)")
	flag.IntVar(&flagRecords, "records", 100000, "Number of records to append")
	flag.IntVar(&flagRecordSize, "record-size", 128, "Size of each record payload in bytes")
	flag.IntVar(&flagBlockSize, "block-size", 4096, "File block size in bytes")
	flag.IntVar(&flagBufferBlocks, "buffer-blocks", 64, "Append buffer size in blocks")
	flag.IntVar(&flagFlushEvery, "flush-every", 1000, "Flush after this many appends")
}

func main() {
	flag.Parse()

	if flagHelp {
		printHelp()
		os.Exit(0)
	}

	runBenchmark()
}

func printHelp() {
	fmt.Print(`
WALe Benchmark Tool

Usage:
  walebench [options]

Options:
  -h, -help              Show this help message
  -records <n>           Number of records to append (default: 100000)
  -record-size <n>       Record payload size in bytes (default: 128)
  -block-size <n>        File block size in bytes (default: 4096)
  -buffer-blocks <n>     Append buffer size in blocks (default: 64)
  -flush-every <n>       Flush after this many appends (default: 1000)
`)
}

func runBenchmark() {
	fmt.Printf("WALe Benchmark Tool\n")
	fmt.Printf("====================\n")
	fmt.Printf("Records:      %d\n", flagRecords)
	fmt.Printf("Record size:  %d bytes\n", flagRecordSize)
	fmt.Printf("Block size:   %d bytes\n", flagBlockSize)
	fmt.Printf("Buffer:       %d blocks\n", flagBufferBlocks)
	fmt.Println()

	mem := blockio.NewMemory(flagBlockSize)
	w, err := wale.Initialize(mem, wale.Options{
		NextLSNSeed:      lsn.FromUint64(1),
		BufferBlockCount: flagBufferBlocks,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing log: %v\n", err)
		os.Exit(1)
	}
	defer w.Deinitialize()

	payload := make([]byte, flagRecordSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	start := time.Now()
	for i := 0; i < flagRecords; i++ {
		if _, err := w.AppendLogRecord(payload, false); err != nil {
			fmt.Fprintf(os.Stderr, "Error appending at record %d: %v\n", i, err)
			os.Exit(1)
		}
		if flagFlushEvery > 0 && (i+1)%flagFlushEvery == 0 {
			if err := w.FlushAllLogRecords(); err != nil {
				fmt.Fprintf(os.Stderr, "Error flushing at record %d: %v\n", i, err)
				os.Exit(1)
			}
		}
	}
	if err := w.FlushAllLogRecords(); err != nil {
		fmt.Fprintf(os.Stderr, "Error on final flush: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("Appended %d records in %s\n", flagRecords, elapsed)
	fmt.Printf("Throughput: %.0f records/sec\n", float64(flagRecords)/elapsed.Seconds())
	fmt.Printf("Throughput: %.2f MB/sec\n", float64(flagRecords*flagRecordSize)/elapsed.Seconds()/(1024*1024))
}
