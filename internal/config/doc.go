// Package config loads and validates the TOML configuration shared by the
// memedex daemon and the captionerd worker.
package config
