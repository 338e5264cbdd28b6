// inflateworker is the workload run under valgrind. It reads the fixed
// compressed span out of the fixture container and inflates it in one of
// three modes:
//
//	single-pass      - one output buffer sized to the full result
//	forced-multipass - an undersized buffer, forcing window growth
//	noop             - no decompression at all
//
// Any other mode behaves as noop. Expected canary allocations carry the
// trace malloc <- updatewindow <- inflate <- main.runInflate.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/zliballoc/inflatecheck/internal/fixture"
)

const multipassBufLen = 8192

func main() {
	log.SetFlags(0)
	if len(os.Args) != 3 {
		log.Fatalf("ERROR: invalid number of arguments: [%d],"+
			" expected first argument: path to the fixture container,"+
			" expected second argument: 'single-pass', 'forced-multipass' or 'noop'",
			len(os.Args)-1)
	}
	mode := os.Args[2]
	log.Printf("INFO: running in mode: [%s]", mode)

	params := fixture.ParamsFromEnv()
	comp, err := fixture.ReadCompressed(os.Args[1], params)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	if err := runInflate(comp, mode, params.UncompressedLen); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	// exit without any graceful shutdown so teardown-time allocations
	// and frees stay out of the memcheck report
	os.Exit(0)
}

func runInflate(comp []byte, mode string, want int) error {
	switch mode {
	case "single-pass":
		return inflateSinglePass(comp, want)
	case "forced-multipass":
		return inflateMultipass(comp, want)
	default:
		return nil
	}
}

// inflateSinglePass decompresses the whole span into one exactly-sized
// buffer, in as few reads as the decompressor allows. This is the
// condition under which no window-growth allocation should happen.
func inflateSinglePass(comp []byte, want int) error {
	fr := flate.NewReader(bytes.NewReader(comp))
	buf := make([]byte, want)
	total := 0
	for total < want {
		n, err := fr.Read(buf[total:])
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("inflate failed after %d bytes: %w", total, err)
		}
		if n == 0 {
			break
		}
	}
	return checkDecompressedLen(want, total)
}

// inflateMultipass drains the span through an undersized buffer so the
// decompressor has to grow its window at least once.
func inflateMultipass(comp []byte, want int) error {
	fr := flate.NewReader(bytes.NewReader(comp))
	buf := make([]byte, multipassBufLen)
	total := 0
	for {
		n, err := fr.Read(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("inflate failed after %d bytes: %w", total, err)
		}
	}
	return checkDecompressedLen(want, total)
}

func checkDecompressedLen(want, got int) error {
	if want != got {
		return fmt.Errorf("inflate result mismatch: expected decompressed bytes: [%d], actual: [%d]", want, got)
	}
	log.Printf("INFO: inflate finished, decompressed [%d] bytes", got)
	return nil
}
