// Package web embeds the server rendered pages and their assets.
package web

import "embed"

// Templates holds the layouts, partials and pages parsed by view.NewEngine.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static holds the stylesheet and the form script served under /static/.
//
//go:embed static/css static/js
var Static embed.FS
