// Package page renders the HTML embed page referencing an asset's derivative
// set.
package page
