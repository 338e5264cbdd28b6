package environment

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/zliballoc/inflatecheck/internal/fixture"
	"github.com/zliballoc/inflatecheck/internal/leakscan"
)

// Config collects everything the harness needs to run: tool and workload
// locations plus the fixture parameters. Layering, lowest to highest
// precedence: built-in defaults, TOML file, environment variables
// (a .env file is honored when present), CLI flags applied by the caller.
type Config struct {
	Valgrind   string        `toml:"valgrind"`
	Worker     string        `toml:"worker"`
	WorkDir    string        `toml:"workdir"`
	OuterFrame string        `toml:"outer_frame"`
	Fixture    FixtureConfig `toml:"fixture"`
}

type FixtureConfig struct {
	Path            string `toml:"path"`
	HeaderLen       int    `toml:"header_len"`
	CompressedLen   int    `toml:"compressed_len"`
	UncompressedLen int    `toml:"uncompressed_len"`
}

// DefaultConfigFile is picked up from the working directory when no
// explicit --config path is given.
const DefaultConfigFile = "inflatecheck.toml"

func Default() Config {
	params := fixture.DefaultParams()
	return Config{
		OuterFrame: leakscan.DefaultOuterFrame,
		Fixture: FixtureConfig{
			Path:            "testdata/XSDHandler.class.zip",
			HeaderLen:       params.HeaderLen,
			CompressedLen:   params.CompressedLen,
			UncompressedLen: params.UncompressedLen,
		},
	}
}

// Read builds the effective config. An explicit tomlPath must exist; the
// default config file is optional.
func Read(tomlPath string) (*Config, error) {
	cfg := Default()

	path := tomlPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env is optional, unlike in a deployed service
	_ = godotenv.Load()

	if v := os.Getenv("INFLATECHECK_VALGRIND"); v != "" {
		cfg.Valgrind = v
	}
	if v := os.Getenv("INFLATECHECK_WORKER"); v != "" {
		cfg.Worker = v
	}
	if v := os.Getenv("INFLATECHECK_WORKDIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("INFLATECHECK_FIXTURE"); v != "" {
		cfg.Fixture.Path = v
	}
	if v := os.Getenv("INFLATECHECK_OUTER_FRAME"); v != "" {
		cfg.OuterFrame = v
	}

	return &cfg, nil
}

// FixtureParams converts the fixture section for the reader.
func (c *Config) FixtureParams() fixture.Params {
	return fixture.Params{
		HeaderLen:       c.Fixture.HeaderLen,
		CompressedLen:   c.Fixture.CompressedLen,
		UncompressedLen: c.Fixture.UncompressedLen,
	}
}
