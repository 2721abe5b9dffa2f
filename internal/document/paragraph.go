package document

import (
	"fmt"
	"html"
	"reflect"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/vjeantet/jodaTime"

	"github.com/buildsight/buildsight/internal/field"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "01/02/2006", "January 2, 2006"}

func init() {
	raymond.RegisterHelper("list", listHelper)
	raymond.RegisterHelper("isEqual", isEqualHelper)
	raymond.RegisterHelper("formatDate", formatDateHelper)
	raymond.RegisterHelper("formatNumber", formatNumberHelper)
}

// quoteEntities undoes the quote escaping of the substitution engine; the
// renderer expects literal quotes in paragraph text.
var quoteEntities = strings.NewReplacer(
	"&quot;", `"`,
	"&#34;", `"`,
	"&#x22;", `"`,
	"&apos;", "'",
	"&#39;", "'",
	"&#x27;", "'",
)

// Substitute renders paragraph content against ctx.
func Substitute(content string, ctx any) (string, error) {
	tpl, err := raymond.Parse(content)
	if err != nil {
		return "", fmt.Errorf("document: parse paragraph: %w", err)
	}
	out, err := tpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("document: render paragraph: %w", err)
	}
	return quoteEntities.Replace(out), nil
}

// listHelper renders items as a bulleted list. As a block helper the block body
// renders each item; otherwise items render as text.
func listHelper(items interface{}, options *raymond.Options) raymond.SafeString {
	v := reflect.ValueOf(items)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) || v.Len() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i).Interface()
		inner := strings.TrimSpace(options.FnWith(item))
		if inner == "" {
			inner = html.EscapeString(raymond.Str(item))
		}
		b.WriteString("<li>")
		b.WriteString(inner)
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return raymond.SafeString(b.String())
}

func isEqualHelper(a, b interface{}, options *raymond.Options) string {
	if raymond.Str(a) == raymond.Str(b) {
		return options.Fn()
	}
	return options.Inverse()
}

// formatDateHelper formats a date with the Joda pattern in format="...".
func formatDateHelper(value interface{}, options *raymond.Options) string {
	layout := options.HashStr("format")
	if layout == "" {
		layout = DateLayout
	}
	t, ok := toTime(value)
	if !ok {
		return raymond.Str(value)
	}
	return jodaTime.Format(layout, t)
}

// formatNumberHelper formats a number with separators; decimals=N caps the fraction digits.
func formatNumberHelper(value interface{}, options *raymond.Options) string {
	n, ok := field.ToFloat(value)
	if !ok {
		return raymond.Str(value)
	}
	decimals := 2
	if d, ok := field.ToFloat(options.HashProp("decimals")); ok {
		decimals = int(d)
	}
	return field.FormatNumber(n, decimals)
}

func toTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
