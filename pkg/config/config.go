// Package config exposes the autorefresh configuration for embedding.
package config

import internalconfig "github.com/SmitUplenchwar2687/Autorefresh/internal/config"

// Config is the top-level configuration for an autorefresh session.
type Config = internalconfig.Config

// ServerConfig holds HTTP server settings.
type ServerConfig = internalconfig.ServerConfig

// PageConfig describes one auto-refreshing page.
type PageConfig = internalconfig.PageConfig

// EnvPrefix prefixes environment overrides.
const EnvPrefix = internalconfig.EnvPrefix

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// Load reads configuration from path and the environment.
func Load(path string) (Config, error) {
	return internalconfig.Load(path)
}

// LoadFile reads a JSON config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
