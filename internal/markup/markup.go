// Package markup renders the HTML-like fragments the document renderer consumes.
package markup

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/buildsight/buildsight/web"
)

var tpl = template.Must(template.New("markup").ParseFS(web.Templates, "templates/markup/*.html"))

// Render executes the named fragment template.
func Render(name string, data any) (string, error) {
	var b strings.Builder
	if err := tpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Image is one image reference. URL must already be trusted via SafeURL.
type Image struct {
	URL     template.URL
	Alt     string
	Caption string
	Inline  template.HTML
}

// SafeURL accepts http(s) URLs and base64 image data URIs; anything else yields "".
func SafeURL(raw string) template.URL {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:image/") && strings.Contains(raw, ";base64,") {
		return template.URL(raw)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return template.URL(u.String())
}

// Comment wraps a positioning hint for the renderer, e.g. "<!-- header -->".
func Comment(name string) string {
	name = strings.ReplaceAll(name, "--", "")
	return "<!-- " + strings.TrimSpace(name) + " -->"
}

// Field is a label/value pair rendered as a paragraph.
type Field struct {
	Label string
	Value string
}
