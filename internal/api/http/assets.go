package http

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed assets templates
var content embed.FS

// Assets returns the browser runtime files served under /assets
func Assets() fs.FS {
	sub, err := fs.Sub(content, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

func parsePages() *template.Template {
	return template.Must(template.ParseFS(content, "templates/*.html"))
}
