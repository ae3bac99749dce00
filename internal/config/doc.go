// Package config loads and validates dashboard daemon configuration.
//
// Configuration is YAML with ${VAR} environment expansion. Loading is
// layered: Load (raw), LoadWithDefaults (fills optional fields), and
// LoadAndValidate (the one main should call).
package config
