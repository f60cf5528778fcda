package vm

import (
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// Configuration tests
// ---------------------------------------------------------------------------

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ram", func(c *Config) { c.RAMSize = 0 }},
		{"ram beyond byte addressing", func(c *Config) { c.RAMSize = 512 }},
		{"zero registers", func(c *Config) { c.NumRegisters = 0 }},
		{"zero functions", func(c *Config) { c.MaxFunctions = 0 }},
		{"entry outside table", func(c *Config) { c.EntryLabel = 8 }},
		{"total beyond byte pc", func(c *Config) { c.MaxInstructionsTotal = 300 }},
		{"per-function above total", func(c *Config) { c.MaxFunctionInstructions = 257 }},
		{"no stack region", func(c *Config) { c.RAMSize = 18 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid configuration", tc.name)
		}
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picovm.toml")
	if err := os.WriteFile(path, []byte("ram-size = 128\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAMSize != 128 {
		t.Errorf("RAMSize = %d, want 128", cfg.RAMSize)
	}
	if cfg.NumRegisters != 8 {
		t.Errorf("NumRegisters = %d, want default 8", cfg.NumRegisters)
	}
	if cfg.MaxFunctions != 8 {
		t.Errorf("MaxFunctions = %d, want default 8", cfg.MaxFunctions)
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picovm.toml")
	if err := os.WriteFile(path, []byte("ram-size = 4096\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig accepted ram-size 4096")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("LoadConfig accepted a missing file")
	}
}

func TestRegionLayout(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.codeTableBase() != 0 {
		t.Errorf("codeTableBase = %d, want 0", cfg.codeTableBase())
	}
	if cfg.frameTableBase() != 8 {
		t.Errorf("frameTableBase = %d, want 8", cfg.frameTableBase())
	}
	if cfg.stackFloor() != 16 {
		t.Errorf("stackFloor = %d, want 16", cfg.stackFloor())
	}
	if cfg.stackTop() != 253 {
		t.Errorf("stackTop = %d, want 253", cfg.stackTop())
	}
}
