// Package fixture reads the fixed deflate span out of the captured test
// container. The lengths are properties of one specific payload, so they
// travel as runner configuration rather than constants of the scanner.
package fixture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Params describe where the compressed span sits inside the container
// file and how many bytes it inflates to.
type Params struct {
	HeaderLen       int
	CompressedLen   int
	UncompressedLen int
}

// DefaultParams match the captured XSDHandler.class.zip fixture.
// Header: 30 bytes local file header + 16 bytes filename + 28 bytes extra.
func DefaultParams() Params {
	return Params{
		HeaderLen:       74,
		CompressedLen:   39546,
		UncompressedLen: 103727,
	}
}

// Environment keys the harness uses to hand its configured params to the
// worker process.
const (
	EnvHeaderLen       = "INFLATECHECK_HEADER_LEN"
	EnvCompressedLen   = "INFLATECHECK_COMPRESSED_LEN"
	EnvUncompressedLen = "INFLATECHECK_UNCOMPRESSED_LEN"
)

// ParamsFromEnv starts from the defaults and applies any overrides found
// in the environment. Non-integer values are ignored.
func ParamsFromEnv() Params {
	params := DefaultParams()
	if v, err := strconv.Atoi(os.Getenv(EnvHeaderLen)); err == nil {
		params.HeaderLen = v
	}
	if v, err := strconv.Atoi(os.Getenv(EnvCompressedLen)); err == nil {
		params.CompressedLen = v
	}
	if v, err := strconv.Atoi(os.Getenv(EnvUncompressedLen)); err == nil {
		params.UncompressedLen = v
	}
	return params
}

// Env renders the params as environment assignments for the worker.
func (p Params) Env() []string {
	return []string{
		fmt.Sprintf("%s=%d", EnvHeaderLen, p.HeaderLen),
		fmt.Sprintf("%s=%d", EnvCompressedLen, p.CompressedLen),
		fmt.Sprintf("%s=%d", EnvUncompressedLen, p.UncompressedLen),
	}
}

// Validate checks the container file exists and is large enough to hold
// the header plus the compressed span.
func Validate(path string, params Params) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input fixture not found: %w", err)
	}
	need := int64(params.HeaderLen) + int64(params.CompressedLen)
	if info.Size() < need {
		return fmt.Errorf("input fixture %s too small: expected at least %d bytes, actual %d",
			path, need, info.Size())
	}
	return nil
}

// ReadCompressed skips the container header and reads the compressed span
// verbatim. Short files are reported with expected vs actual byte counts.
func ReadCompressed(path string, params Params) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input fixture %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	skipped, err := br.Discard(params.HeaderLen)
	if err != nil {
		return nil, fmt.Errorf("failed to skip header in fixture %s: expected %d bytes, skipped %d: %w",
			path, params.HeaderLen, skipped, err)
	}

	data := make([]byte, params.CompressedLen)
	read, err := io.ReadFull(br, data)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload from fixture %s: expected %d bytes, read %d: %w",
			path, params.CompressedLen, read, err)
	}
	return data, nil
}
