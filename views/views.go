// Package views embeds the account pages rendered by the auth controller.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
)

//go:embed templates
var templates embed.FS

// FS returns the template tree rooted at the templates directory
func FS() fs.FS {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Engine returns a django engine serving the embedded templates.
// Templates are addressed without extension, e.g. "login" or "errors/500".
func Engine() *django.Engine {
	return django.NewFileSystem(http.FS(FS()), ".html")
}
