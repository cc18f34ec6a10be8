package web

import (
	"embed"
	"io/fs"
	"net/http"
)

// The built-in page posts to /convert; a StaticDir replaces it entirely.
//
//go:embed static
var staticFS embed.FS

func embeddedUI() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
