package pubdash

import "embed"

// EmbeddedAssets contains static assets shipped with the server:
// dashboard.js, analytics.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
