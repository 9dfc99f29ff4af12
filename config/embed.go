// Package config embeds the default configuration file.
package config

import _ "embed"

// Default is the embedded default.yaml.
//
//go:embed default.yaml
var Default []byte
