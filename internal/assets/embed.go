// Package assets contains the embedded browser test client.
package assets

import "embed"

// WebFiles holds the static test client served at /
//
//go:embed web/*
var WebFiles embed.FS
