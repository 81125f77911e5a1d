// Package config loads the table paths the database works on from a
// YAML file. Missing fields keep the standard /etc locations.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config names the three table files.
type Config struct {
	Passwd string `yaml:"passwd"`
	Shadow string `yaml:"shadow"`
	Group  string `yaml:"group"`
}

// Default is the standard system layout.
func Default() Config {
	return Config{
		Passwd: "/etc/passwd",
		Shadow: "/etc/shadow",
		Group:  "/etc/group",
	}
}

// Load reads a YAML config file; fields left empty fall back to the
// defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.WithDefaults(), nil
}

// WithDefaults fills empty fields with the standard locations.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.Passwd == "" {
		c.Passwd = d.Passwd
	}
	if c.Shadow == "" {
		c.Shadow = d.Shadow
	}
	if c.Group == "" {
		c.Group = d.Group
	}
	return c
}
