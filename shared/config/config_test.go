package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if *cfg != *DefaultConfig() {
		t.Errorf("LoadFrom(ausente) = %+v, want padrões", cfg)
	}
}

func TestLoadFromKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"world_name": "ilha", "hash_cell_bits": 7}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := LoadFrom(path)
	if cfg.WorldName != "ilha" || cfg.HashCellBits != 7 {
		t.Errorf("campos do arquivo ignorados: %+v", cfg)
	}
	if cfg.ListenAddr != DefaultConfig().ListenAddr {
		t.Errorf("ListenAddr = %q, want padrão", cfg.ListenAddr)
	}
}

func TestLoadFromInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"world_name": `), 0644); err != nil {
		t.Fatal(err)
	}
	if cfg := LoadFrom(path); *cfg != *DefaultConfig() {
		t.Errorf("JSON inválido deveria devolver os padrões")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Seed = 99
	cfg.BrushRadius = 128
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if got := LoadFrom(path); *got != *cfg {
		t.Errorf("LoadFrom(SaveTo(cfg)) = %+v, want %+v", got, cfg)
	}
}
