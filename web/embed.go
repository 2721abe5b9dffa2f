package web

import "embed"

// Templates embeds the markup fragments handed to the document renderer.
//
//go:embed templates/**/*.html
var Templates embed.FS
