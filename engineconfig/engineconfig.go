// Package engineconfig loads the handful of parameters an embedder needs to
// construct a disk manager and buffer pool: where the backing file lives and
// how many frames to keep resident. It is not a command-line surface — an
// embedding program calls Load or Default directly; no flags are parsed
// here.
package engineconfig

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Options are the construction parameters for a gorelly engine instance.
type Options struct {
	// DataDir is the directory containing the backing heap file.
	DataDir string `mapstructure:"data_dir"`
	// HeapFileName is the backing file's name within DataDir.
	HeapFileName string `mapstructure:"heap_file_name"`
	// PoolSize is the number of 4096-byte frames kept resident.
	PoolSize int `mapstructure:"pool_size"`
}

// Default returns the options used when no config file is present: a
// "./data" directory, a "gorelly.db" heap file, and a 64-frame pool (256
// KiB resident).
func Default() Options {
	return Options{
		DataDir:      "./data",
		HeapFileName: "gorelly.db",
		PoolSize:     64,
	}
}

// Load reads options from path (YAML, TOML, or JSON, detected by
// extension), falling back to Default for any field the file omits.
// Environment variables prefixed GORELLY_ (e.g. GORELLY_POOL_SIZE) override
// file values, matching the override precedence the pack's Viper-based
// config layers use.
func Load(path string) (Options, error) {
	opts := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GORELLY")
	v.AutomaticEnv()

	v.SetDefault("data_dir", opts.DataDir)
	v.SetDefault("heap_file_name", opts.HeapFileName)
	v.SetDefault("pool_size", opts.PoolSize)

	if err := v.ReadInConfig(); err != nil {
		return Options{}, errors.Wrapf(err, "load engine config %q", path)
	}

	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, errors.Wrapf(err, "decode engine config %q", path)
	}
	if opts.PoolSize <= 0 {
		return Options{}, errors.Errorf("pool_size must be positive, got %d", opts.PoolSize)
	}
	return opts, nil
}
