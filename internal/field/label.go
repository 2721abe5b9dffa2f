package field

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayMode controls whether rendered values carry their label.
type DisplayMode string

const (
	// DisplayLabeled renders "Label: value".
	DisplayLabeled DisplayMode = "labeled"
	// DisplayValueOnly renders the bare value.
	DisplayValueOnly DisplayMode = "valueOnly"
)

// ParseDisplayMode maps template values onto a DisplayMode, defaulting to labeled output.
func ParseDisplayMode(raw string) DisplayMode {
	switch strings.TrimSpace(raw) {
	case string(DisplayValueOnly), "value", "hideLabel", "hideLabels":
		return DisplayValueOnly
	default:
		return DisplayLabeled
	}
}

// literal label fixes applied after the generic camelCase split.
var labelOverrides = strings.NewReplacer(
	"Open247", "Open24/7",
	"Usetype", "Use Type",
	"Percentof", "% of",
)

// LabelFor returns the display label of a field reference. A custom label keyed
// by the full reference, or by its last segment, wins over the derived one.
// Derived labels title-case every segment, so "naturalGas.usage" reads
// "Natural Gas Usage" and "rates.electric" reads "Electric Rate".
func LabelFor(name string, custom map[string]string) string {
	name = strings.TrimSpace(name)
	if label, ok := custom[name]; ok && strings.TrimSpace(label) != "" {
		return label
	}
	segs := strings.Split(name, ".")
	last := segs[len(segs)-1]
	if label, ok := custom[last]; ok && strings.TrimSpace(label) != "" {
		return label
	}
	if len(segs) == 2 && segs[0] == "rates" {
		return humanize(last) + " Rate"
	}
	words := make([]string, 0, len(segs))
	for i, seg := range segs {
		if seg == "" || groupingSegments[seg] {
			continue
		}
		// "electric.electricPercentofTotal" already names its parent
		if i+1 < len(segs) && strings.HasPrefix(strings.ToLower(segs[i+1]), strings.ToLower(seg)) {
			continue
		}
		words = append(words, humanize(seg))
	}
	if len(words) == 0 {
		return humanize(last)
	}
	return strings.Join(words, " ")
}

// groupingSegments are containers that carry no meaning in a label.
var groupingSegments = map[string]bool{
	"info":     true,
	"details":  true,
	"summary":  true,
	"degree":   true,
	"location": true,
}

// LabelIfShown returns "<label>: " or "" when the display mode hides labels.
func LabelIfShown(label string, mode DisplayMode) string {
	if mode == DisplayValueOnly || strings.TrimSpace(label) == "" {
		return ""
	}
	return label + ": "
}

func humanize(seg string) string {
	if seg == "" {
		return ""
	}
	var b strings.Builder
	runes := []rune(strings.ReplaceAll(seg, "_", " "))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) && runes[i-1] != ' ' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	titled := cases.Title(language.English, cases.NoLower).String(b.String())
	return labelOverrides.Replace(titled)
}
