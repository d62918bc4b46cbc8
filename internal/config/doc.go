// Package config handles configuration loading for pharma-console.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. A .env file in the working directory is loaded first, without
// overriding variables that are already set. When no file exists, defaults
// are used with PHARMA_* environment overrides.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path given with --config
//  2. Path from PHARMA_CONFIG environment variable
//  3. ~/.config/pharma/console.yaml (or .yml, .toml)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	api:
//	  admin_key: "${PHARMA_ADMIN_KEY}"
//
// Unset variables expand to empty strings and then fall back to defaults.
//
// # Configuration Sections
//
// Backend:
//
//	api:
//	  base_url: "http://localhost:8000"
//	  admin_key: "dev-admin-key"
//	  timeout: "10s"
//	  rate_limit: 0     # requests/second, 0 disables
//	  rate_burst: 1
//
// Session credential storage:
//
//	session:
//	  backend: "file"   # file, sqlite, memory
//	  path: ""          # default ~/.config/pharma/token or console.db
//
// Operator login:
//
//	auth:
//	  session_secret: "${PHARMA_SESSION_SECRET}"   # at least 32 bytes
//	  session_ttl: "12h"
//	  dev_mode: false
//	  operators:
//	    - email: "ops@example.com"
//	      password_hash: "$2a$10$..."
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
