// Package preflight provides readiness checks for the external tools,
// filesystem paths, and remote API the pipeline depends on.
//
// The CLI "mediaforge preflight" command runs RunAll and renders the results;
// failing a check there is much cheaper than failing halfway through a
// transcode.
package preflight
