// Package config loads client configuration from YAML files.
package config
