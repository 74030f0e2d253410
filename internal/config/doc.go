// Package config loads, normalizes, and validates pixie configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PIXIV_USERNAME and PIXIV_PASSWORD. The Config type centralizes every knob
// the CLI needs: directories, credentials, download defaults, the archive
// ledger switch, and logging output.
package config
