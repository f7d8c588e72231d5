// Package scaffold provides the embedded starter configuration written by
// `pubdash init`.
package scaffold

import "embed"

// Templates contains the starter files. Files use Go text/template syntax
// and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS
