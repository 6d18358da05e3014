// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// BRIDGE_IPC_PORT, when set, overrides bridge.port.
package config
