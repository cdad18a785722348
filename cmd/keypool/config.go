package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const defaultAlgorithm = "aes-256-cbc"

// Environment overrides, applied after the config file and before flags.
const (
	envAlgorithm = "KEYPOOL_ALGORITHM"
	envKeyset    = "KEYPOOL_KEYSET"
	envStore     = "KEYPOOL_STORE"
)

// settings is the resolved CLI configuration. It doubles as the YAML layout of
// the config file.
type settings struct {
	Algorithm string `yaml:"algorithm"`
	Keyset    string `yaml:"keyset"`
	Store     string `yaml:"store"`
}

func readSettings(path string) (*settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Relative paths in the file are relative to the file.
	dir := filepath.Dir(path)
	for _, p := range []*string{&s.Keyset, &s.Store} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return &s, nil
}

// resolve merges defaults, the config file, the environment and flags, in
// increasing order of precedence.
func resolve(g *Globals) (*settings, error) {
	if g.EnvFile != "" {
		if err := godotenv.Load(g.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	s := &settings{Algorithm: defaultAlgorithm}
	if g.Config != "" {
		fromFile, err := readSettings(g.Config)
		if err != nil {
			return nil, err
		}
		override(s, *fromFile)
	}

	override(s, settings{
		Algorithm: os.Getenv(envAlgorithm),
		Keyset:    os.Getenv(envKeyset),
		Store:     os.Getenv(envStore),
	})
	override(s, settings{
		Algorithm: g.Algorithm,
		Keyset:    g.Keyset,
		Store:     g.Store,
	})

	if s.Keyset == "" {
		return nil, fmt.Errorf("no key set: pass --keyset, set %s or add keyset to the config file", envKeyset)
	}
	return s, nil
}

func override(dst *settings, src settings) {
	if src.Algorithm != "" {
		dst.Algorithm = src.Algorithm
	}
	if src.Keyset != "" {
		dst.Keyset = src.Keyset
	}
	if src.Store != "" {
		dst.Store = src.Store
	}
}
