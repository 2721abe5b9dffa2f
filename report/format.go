package report

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsupportedFormat indicates an output family outside the fixed set.
var ErrUnsupportedFormat = errors.New("report: unsupported output format")

// Format is an output document family.
type Format string

const (
	FormatDocx Format = "docx"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatXML  Format = "xml"
)

// Content types of the supported output families.
const (
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeXML  = "application/xml"
)

var formatAliases = map[string]Format{
	"":              FormatDocx,
	"docx":          FormatDocx,
	"word":          FormatDocx,
	"doc":           FormatDocx,
	"pdf":           FormatPDF,
	"xlsx":          FormatXLSX,
	"excel":         FormatXLSX,
	"xml":           FormatXML,
	ContentTypeDocx: FormatDocx,
	ContentTypePDF:  FormatPDF,
	ContentTypeXLSX: FormatXLSX,
	ContentTypeXML:  FormatXML,
	"text/xml":      FormatXML,
}

// ParseFormat maps a docTo value, a format name or a content type onto a Format.
// Empty selects Word output.
func ParseFormat(raw string) (Format, error) {
	if f, ok := formatAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
}

// ContentType returns the MIME type of the family.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return ContentTypePDF
	case FormatXLSX:
		return ContentTypeXLSX
	case FormatXML:
		return ContentTypeXML
	default:
		return ContentTypeDocx
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == "" {
		return string(FormatDocx)
	}
	return string(f)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9 _.-]+`)

// Filename sanitizes name for a Content-Disposition header and drops any extension.
func Filename(name string) string {
	name = strings.TrimSpace(unsafeFilename.ReplaceAllString(name, "_"))
	name = strings.TrimSuffix(name, ".")
	for _, f := range []Format{FormatDocx, FormatPDF, FormatXLSX, FormatXML} {
		name = strings.TrimSuffix(name, "."+string(f))
	}
	if strings.Trim(name, "_. ") == "" {
		return "report"
	}
	return name
}
