package fixture_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zliballoc/inflatecheck/internal/fixture"
)

func writeContainer(t *testing.T, header, payload, trailer []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.zip")
	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(payload)
	buf.Write(trailer)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestReadCompressed(t *testing.T) {
	header := bytes.Repeat([]byte{0xAA}, 10)
	payload := []byte("compressed-bytes-go-here")
	trailer := bytes.Repeat([]byte{0xBB}, 5)
	path := writeContainer(t, header, payload, trailer)

	params := fixture.Params{HeaderLen: 10, CompressedLen: len(payload), UncompressedLen: 100}
	data, err := fixture.ReadCompressed(path, params)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestReadCompressedShortHeader(t *testing.T) {
	path := writeContainer(t, []byte{0x01, 0x02, 0x03}, nil, nil)

	params := fixture.Params{HeaderLen: 10, CompressedLen: 4}
	_, err := fixture.ReadCompressed(path, params)
	require.Error(t, err)
	require.Contains(t, err.Error(), "skip header")
	require.Contains(t, err.Error(), "expected 10")
}

func TestReadCompressedShortPayload(t *testing.T) {
	header := bytes.Repeat([]byte{0xAA}, 10)
	path := writeContainer(t, header, []byte("abc"), nil)

	params := fixture.Params{HeaderLen: 10, CompressedLen: 20}
	_, err := fixture.ReadCompressed(path, params)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 20")
	require.Contains(t, err.Error(), "read 3")
}

func TestReadCompressedMissingFile(t *testing.T) {
	_, err := fixture.ReadCompressed(filepath.Join(t.TempDir(), "nope.zip"), fixture.DefaultParams())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open input fixture")
}

func TestValidate(t *testing.T) {
	header := bytes.Repeat([]byte{0xAA}, 10)
	payload := bytes.Repeat([]byte{0xCC}, 20)
	path := writeContainer(t, header, payload, nil)

	params := fixture.Params{HeaderLen: 10, CompressedLen: 20}
	require.NoError(t, fixture.Validate(path, params))

	params.CompressedLen = 21
	err := fixture.Validate(path, params)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected at least 31")
	require.Contains(t, err.Error(), "actual 30")
}

func TestValidateMissingFile(t *testing.T) {
	err := fixture.Validate(filepath.Join(t.TempDir(), "nope.zip"), fixture.DefaultParams())
	require.Error(t, err)
	require.Contains(t, err.Error(), "input fixture not found")
}

func TestParamsFromEnv(t *testing.T) {
	t.Setenv(fixture.EnvHeaderLen, "30")
	t.Setenv(fixture.EnvCompressedLen, "1234")
	t.Setenv(fixture.EnvUncompressedLen, "5678")

	params := fixture.ParamsFromEnv()
	require.Equal(t, fixture.Params{HeaderLen: 30, CompressedLen: 1234, UncompressedLen: 5678}, params)
}

func TestParamsFromEnvDefaults(t *testing.T) {
	t.Setenv(fixture.EnvHeaderLen, "")
	t.Setenv(fixture.EnvCompressedLen, "not-a-number")
	t.Setenv(fixture.EnvUncompressedLen, "")

	require.Equal(t, fixture.DefaultParams(), fixture.ParamsFromEnv())
}

func TestParamsEnvRoundTrip(t *testing.T) {
	params := fixture.Params{HeaderLen: 1, CompressedLen: 2, UncompressedLen: 3}
	require.Equal(t, []string{
		"INFLATECHECK_HEADER_LEN=1",
		"INFLATECHECK_COMPRESSED_LEN=2",
		"INFLATECHECK_UNCOMPRESSED_LEN=3",
	}, params.Env())
}

func TestDefaultParams(t *testing.T) {
	params := fixture.DefaultParams()
	require.Equal(t, 74, params.HeaderLen)
	require.Equal(t, 39546, params.CompressedLen)
	require.Equal(t, 103727, params.UncompressedLen)
}
