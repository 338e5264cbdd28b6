// Package leakscan counts allocation records in a valgrind memcheck XML
// report whose call stack contains a fixed four-frame signature. The report
// is consumed as a token stream, so arbitrarily large reports are scanned
// in bounded memory.
package leakscan

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrMalformedReport marks a structural failure in the report itself,
// as opposed to a report that simply has no matching records.
var ErrMalformedReport = errors.New("malformed memcheck report")

// DefaultOuterFrame is the worker function that drives inflate, the
// outermost frame of the default signature.
const DefaultOuterFrame = "main.runInflate"

// Signature is an ordered tuple of symbol names, innermost frame first:
// the allocation primitive, the buffer-growth routine, the decompression
// entry point, and the function that drove the decompression.
type Signature [4]string

// DefaultSignature returns the zlib window-growth signature. The outermost
// frame names whatever function invoked inflate and varies per workload,
// so the caller supplies it.
func DefaultSignature(outerFrame string) Signature {
	return Signature{"malloc", "updatewindow", "inflate", outerFrame}
}

func (s Signature) String() string {
	return strings.Join(s[:], " <- ")
}

// element position within the report
type elemState int

const (
	elOutside elemState = iota // not inside a <stack>
	elInStack                  // inside <stack>, between frames
	elInFn                     // inside a <fn> element, collecting the symbol
)

// progress through the signature within the current stack
type sigState int

const (
	sigIdle sigState = iota
	sigSawAlloc
	sigSawGrow
	sigSawEntry
)

// Count scans one memcheck XML report and returns the number of allocation
// records whose frame sequence contains sig as a contiguous window. A record
// never matches across stack boundaries. Any XML syntax error is returned
// wrapping ErrMalformedReport; a corrupt report is never reported as zero.
func Count(r io.Reader, sig Signature) (int, error) {
	dec := xml.NewDecoder(r)

	el := elOutside
	st := sigIdle
	count := 0
	var symbol strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch el {
			case elOutside:
				if t.Name.Local == "stack" {
					el = elInStack
					// matches never span two records
					st = sigIdle
				}
			case elInStack:
				if t.Name.Local == "fn" {
					el = elInFn
					symbol.Reset()
				}
			}
		case xml.CharData:
			if el == elInFn {
				symbol.Write(t)
			}
		case xml.EndElement:
			switch el {
			case elInFn:
				if t.Name.Local == "fn" {
					st = advance(st, symbol.String(), sig, &count)
					el = elInStack
				}
			case elInStack:
				if t.Name.Local == "stack" {
					el = elOutside
				}
			}
		}
	}

	return count, nil
}

// advance feeds one frame symbol into the signature state machine. On a
// mismatch mid-signature the symbol is re-tested as a potential window
// start, so a frame that breaks one window can still open the next.
func advance(st sigState, symbol string, sig Signature, count *int) sigState {
	switch st {
	case sigSawAlloc:
		if symbol == sig[1] {
			return sigSawGrow
		}
	case sigSawGrow:
		if symbol == sig[2] {
			return sigSawEntry
		}
	case sigSawEntry:
		if symbol == sig[3] {
			*count++
			return sigIdle
		}
	}
	if symbol == sig[0] {
		return sigSawAlloc
	}
	return sigIdle
}

// CountFile opens a report file and counts signature matches in it.
// Reports archived as .zst or .gz are decoded transparently.
func CountFile(path string, sig Signature) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open report %s: %w", path, err)
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".zst":
		d, err := zstd.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
		}
		defer d.Close()
		return Count(d, sig)
	case ".gz":
		g, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
		}
		defer g.Close()
		return Count(g, sig)
	}
	return Count(f, sig)
}
