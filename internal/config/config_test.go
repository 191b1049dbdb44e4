package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresFilenameUnlessReadingFromFile(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := BindFlags(fs)
	err := fs.Parse(nil)
	require.NoError(t, err)
	if _, err := Load(v); err == nil {
		t.Fatal("expected an error when neither filename nor readFromFile is set")
	}
}

func TestLoadDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := BindFlags(fs)
	err := fs.Parse([]string{"--filename", "graph.bin"})
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	if cfg.DecomposeFactor != 1 {
		t.Fatalf("DecomposeFactor = %d, want 1", cfg.DecomposeFactor)
	}
	if cfg.Filename != "graph.bin" {
		t.Fatalf("Filename = %q, want graph.bin", cfg.Filename)
	}
	if cfg.ColumnBlocked || cfg.MoreColumnHosts || cfg.Transpose || cfg.ReadFromFile {
		t.Fatalf("unexpected non-default flags: %+v", cfg)
	}
}

func TestLoadParsesScaleFactor(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := BindFlags(fs)
	err := fs.Parse([]string{"--filename", "graph.bin", "--scale-factor", "1, 2,3"})
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	want := []uint64{1, 2, 3}
	if len(cfg.ScaleFactor) != len(want) {
		t.Fatalf("ScaleFactor = %v, want %v", cfg.ScaleFactor, want)
	}
	for i := range want {
		if cfg.ScaleFactor[i] != want[i] {
			t.Fatalf("ScaleFactor = %v, want %v", cfg.ScaleFactor, want)
		}
	}
}

func TestLoadRejectsZeroDecomposeFactor(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := BindFlags(fs)
	err := fs.Parse([]string{"--filename", "graph.bin", "--decompose-factor", "0"})
	require.NoError(t, err)
	if _, err := Load(v); err == nil {
		t.Fatal("expected an error for decompose-factor=0")
	}
}
