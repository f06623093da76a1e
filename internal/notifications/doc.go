// Package notifications delivers pipeline events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when notifications are disabled. The
// pipeline depends only on the small Service interface; notification failures
// never affect the run outcome.
package notifications
