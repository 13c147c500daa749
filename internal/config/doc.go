// Package config defines the switch configuration and loads, validates and
// saves it.
//
// Files ending in .toml are read with BurntSushi/toml, anything else as YAML.
// Timers accept whole seconds or Go duration strings, so config.toml files
// written by earlier releases load unchanged.
// An optional .env file next to the configuration and the process
// environment may override secrets. The configuration is immutable once the
// switch starts.
package config
