// Package config handles configuration loading for parley.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  token: "${PARLEY_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sync:
//	  reconnect_backoff_min: "1s"
//	  reconnect_backoff_max: "30s"
//	  dedupe_ttl: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server endpoints:
//
//	server:
//	  base_url: "https://chat.example.com"
//	  ws_url: "wss://chat.example.com"  # derived from base_url if omitted
//
// Authentication:
//
//	auth:
//	  token: "${PARLEY_TOKEN}"
//	  token_file: "~/.config/parley/token"  # used when token is empty
//
// Preference database:
//
//	prefs:
//	  path: "~/.local/share/parley/prefs.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/parley/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
