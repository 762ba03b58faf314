// Package layout renders the root HTML document shell shared by every page.
package layout

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

//go:embed static
var staticFS embed.FS

// StylesheetPath is where the global stylesheet is served.
const StylesheetPath = "/static/globals.css"

// Metadata describes the document head.
type Metadata struct {
	Title       string
	Description string
}

var siteMetadata = Metadata{
	Title:       "Weather Fortune",
	Description: "Get your daily weather forecast using AI predictions.",
}

// SiteMetadata returns the fixed page metadata.
func SiteMetadata() Metadata {
	return siteMetadata
}

// Language is the document language of every page.
var Language = language.English

var shell = template.Must(template.New("root").Parse(
	`<!DOCTYPE html>` +
		`<html lang="{{.Lang}}">` +
		`<head>` +
		`<meta charset="utf-8">` +
		`<meta name="viewport" content="width=device-width, initial-scale=1">` +
		`<title>{{.Meta.Title}}</title>` +
		`<meta name="description" content="{{.Meta.Description}}">` +
		`<link rel="stylesheet" href="{{.Stylesheet}}">` +
		`</head>` +
		`<body>{{.Children}}</body>` +
		`</html>`))

type shellData struct {
	Lang       string
	Meta       Metadata
	Stylesheet string
	Children   template.HTML
}

// Render writes the document with children embedded verbatim in <body>.
// Nothing is written if the template fails.
func Render(w io.Writer, children template.HTML) error {
	var buf bytes.Buffer
	err := shell.Execute(&buf, shellData{
		Lang:       Language.String(),
		Meta:       SiteMetadata(),
		Stylesheet: StylesheetPath,
		Children:   children,
	})
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
