package environment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zliballoc/inflatecheck/internal/environment"
	"github.com/zliballoc/inflatecheck/internal/leakscan"
)

func TestReadDefaults(t *testing.T) {
	cfg, err := environment.Read("")
	require.NoError(t, err)
	require.Equal(t, leakscan.DefaultOuterFrame, cfg.OuterFrame)
	require.Equal(t, "main.runInflate", leakscan.DefaultOuterFrame)
	require.Equal(t, 74, cfg.Fixture.HeaderLen)
	require.Equal(t, 39546, cfg.Fixture.CompressedLen)
	require.Equal(t, 103727, cfg.Fixture.UncompressedLen)
}

func TestReadTomlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inflatecheck.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
valgrind = "/opt/valgrind/bin/valgrind"
worker = "./inflateworker"
outer_frame = "main.inflateEntry"

[fixture]
path = "payload.zip"
header_len = 30
compressed_len = 1234
uncompressed_len = 5678
`), 0644))

	cfg, err := environment.Read(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/valgrind/bin/valgrind", cfg.Valgrind)
	require.Equal(t, "./inflateworker", cfg.Worker)
	require.Equal(t, "main.inflateEntry", cfg.OuterFrame)
	require.Equal(t, "payload.zip", cfg.Fixture.Path)

	params := cfg.FixtureParams()
	require.Equal(t, 30, params.HeaderLen)
	require.Equal(t, 1234, params.CompressedLen)
	require.Equal(t, 5678, params.UncompressedLen)
}

func TestReadTomlPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inflatecheck.toml")
	require.NoError(t, os.WriteFile(path, []byte(`worker = "./inflateworker"`), 0644))

	cfg, err := environment.Read(path)
	require.NoError(t, err)
	require.Equal(t, "./inflateworker", cfg.Worker)
	// untouched sections keep defaults
	require.Equal(t, 74, cfg.Fixture.HeaderLen)
}

func TestReadEnvOverridesToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inflatecheck.toml")
	require.NoError(t, os.WriteFile(path, []byte(`valgrind = "/from/toml"`), 0644))

	t.Setenv("INFLATECHECK_VALGRIND", "/from/env")
	t.Setenv("INFLATECHECK_FIXTURE", "env-payload.zip")

	cfg, err := environment.Read(path)
	require.NoError(t, err)
	require.Equal(t, "/from/env", cfg.Valgrind)
	require.Equal(t, "env-payload.zip", cfg.Fixture.Path)
}

func TestReadMissingExplicitFile(t *testing.T) {
	_, err := environment.Read(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config file")
}

func TestReadBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inflatecheck.toml")
	require.NoError(t, os.WriteFile(path, []byte(`valgrind = [unclosed`), 0644))

	_, err := environment.Read(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse config file")
}
