// Package config binds the partitioner's configuration parameters (spec
// §6) to flags, environment variables and an optional config file via
// github.com/spf13/viper, the way the rest of the retrieved pack's
// service-shaped repos bind runtime configuration.
package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is spec.md §6's configuration parameter set.
type Config struct {
	Filename string `mapstructure:"filename"`
	// ScaleFactor is decoded from the scalefactor string key by hand in
	// Load, since mapstructure has no string->[]uint64 conversion.
	ScaleFactor        []uint64 `mapstructure:"-"`
	Transpose          bool     `mapstructure:"transpose"`
	ReadFromFile       bool     `mapstructure:"readfromfile"`
	LocalGraphFileName string   `mapstructure:"localgraphfilename"`
	ColumnBlocked      bool     `mapstructure:"columnblocked"`
	MoreColumnHosts    bool     `mapstructure:"morecolumnhosts"`
	DecomposeFactor    int      `mapstructure:"decomposefactor"`
}

// BindFlags registers Config's fields on fs and returns a Viper instance
// ready for Load to read back from, with VCUT_-prefixed environment
// variables and an optional vcut.yaml taking precedence over defaults but
// not over explicitly-set flags.
func BindFlags(fs *pflag.FlagSet) *viper.Viper {
	fs.String("filename", "", "path to the input graph file")
	fs.String("scale-factor", "", "comma-separated per-block weight, empty for a uniform cut")
	fs.Bool("transpose", false, "treat the graph as transposed")
	fs.Bool("read-from-file", false, "skip ingest and load a serialized local graph")
	fs.String("local-graph-file", "", "sidecar path for --read-from-file / serialization")
	fs.Bool("column-blocked", false, "checkerboard cut instead of strict cartesian")
	fs.Bool("more-column-hosts", false, "swap the virtual grid's row/column roles")
	fs.Int("decompose-factor", 1, "virtual hosts per real process")

	v := viper.New()
	v.SetEnvPrefix("vcut")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetConfigName("vcut")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.BindPFlag("filename", fs.Lookup("filename"))
	v.BindPFlag("scalefactor", fs.Lookup("scale-factor"))
	v.BindPFlag("transpose", fs.Lookup("transpose"))
	v.BindPFlag("readfromfile", fs.Lookup("read-from-file"))
	v.BindPFlag("localgraphfilename", fs.Lookup("local-graph-file"))
	v.BindPFlag("columnblocked", fs.Lookup("column-blocked"))
	v.BindPFlag("morecolumnhosts", fs.Lookup("more-column-hosts"))
	v.BindPFlag("decomposefactor", fs.Lookup("decompose-factor"))

	return v
}

// Load reads vcut.yaml if present (silently skipping ENOENT) and decodes
// the bound values into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, errors.Wrap(err, "config: reading vcut.yaml")
		}
	}

	cfg := &Config{
		DecomposeFactor: 1,
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config: decoding")
	}
	if raw := v.GetString("scalefactor"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "config: parsing scaleFactor entry %q", part)
			}
			cfg.ScaleFactor = append(cfg.ScaleFactor, n)
		}
	}
	if cfg.DecomposeFactor <= 0 {
		return nil, errors.Errorf("config: decomposeFactor must be positive, got %d", cfg.DecomposeFactor)
	}
	if cfg.ReadFromFile && cfg.LocalGraphFileName == "" {
		return nil, errors.New("config: readFromFile requires localGraphFileName")
	}
	if !cfg.ReadFromFile && cfg.Filename == "" {
		return nil, errors.New("config: filename is required unless readFromFile is set")
	}
	return cfg, nil
}
