// Package config loads, normalizes, and validates mediaforge configuration.
//
// Configuration comes from a TOML file (project-local mediaforge.toml or
// ~/.config/mediaforge/config.toml) with a small set of environment overrides
// layered on top for values that typically arrive through CI secrets, such as
// the Gemini API key. Load applies defaults, expands ~ in paths, and runs an
// explicit validation pass so the rest of the system can assume a usable
// configuration.
package config
