// Command mediaforge is the CLI for the content-addressed media processing
// pipeline: process runs pending stages for one file, index inspects and
// repairs the record store, preflight checks the environment, and config
// manages the TOML configuration.
package main
