package main

import (
	"os"

	"github.com/goccy/go-yaml"
)

// fileConfig holds the defaults an optional git-subset.yaml supplies
// underneath explicit flags — the same "defaults file, overridable per
// invocation" shape cmd/gitrim-svc/main.go uses for its --config flag,
// generalized from "the only way to configure" to "a base layer flags win
// over."
type fileConfig struct {
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
	NoMap  bool   `yaml:"nomap"`
	Force  bool   `yaml:"force"`
}

// loadFileConfig reads a YAML defaults file at path. A missing file is not
// an error — it just means no defaults are layered in.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, err
	}

	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
