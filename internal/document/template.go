// Package document walks report templates block by block and assembles the
// markup body handed to the rendering service.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/table"
)

const (
	defaultTOCDepth = 3
	maxTOCDepth     = 6
)

var (
	// ErrInvalidTemplate indicates a malformed template body.
	ErrInvalidTemplate = errors.New("document: invalid template")
	// ErrUnknownElement indicates a block element outside the closed set.
	ErrUnknownElement = errors.New("document: unknown element")
)

// Element is the kind of markup a block renders.
type Element string

const (
	ElementParagraph   Element = "paragraph"
	ElementList        Element = "list"
	ElementTable       Element = "table"
	ElementImage       Element = "image"
	ElementDivider     Element = "divider"
	ElementChart       Element = "chart"
	ElementHeading     Element = "heading"
	ElementHeader      Element = "header"
	ElementFooter      Element = "footer"
	ElementHeaderImage Element = "header-image"
)

var elements = map[string]Element{
	"paragraph":    ElementParagraph,
	"text":         ElementParagraph,
	"p":            ElementParagraph,
	"list":         ElementList,
	"ul":           ElementList,
	"table":        ElementTable,
	"image":        ElementImage,
	"img":          ElementImage,
	"divider":      ElementDivider,
	"hr":           ElementDivider,
	"chart":        ElementChart,
	"heading":      ElementHeading,
	"header":       ElementHeader,
	"footer":       ElementFooter,
	"header-image": ElementHeaderImage,
	"headerimage":  ElementHeaderImage,
}

// ParseElement validates a raw element name.
func ParseElement(raw string) (Element, error) {
	if e, ok := elements[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownElement, raw)
}

// UnmarshalJSON accepts any alias known to ParseElement.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseElement(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// HeaderFooter configures the page header or footer.
type HeaderFooter struct {
	Text     string `json:"text"`
	Image    string `json:"image"`
	Position string `json:"position"`
	Divider  bool   `json:"divider"`
}

// Config holds document-level rendering options.
type Config struct {
	TableOfContents      bool   `json:"tableOfContents"`
	TableOfContentsDepth int    `json:"tableOfContentsDepth"`
	PageNumbers          bool   `json:"pageNumbers"`
	NumberPosition       string `json:"numberPosition"`
}

// Organize selects how periodic tables bucket utility data.
type Organize struct {
	Mode       string `json:"mode"`
	StartMonth int    `json:"startMonth"`
	EndMonth   int    `json:"endMonth"`
	SkipEmpty  bool   `json:"skipEmpty"`
}

// Period converts the options into a normalized bucketing config.
func (o Organize) Period() (period.Config, error) {
	cfg := period.Config{Mode: period.ParseMode(o.Mode), SkipEmpty: o.SkipEmpty}
	if o.StartMonth > 0 {
		cfg.StartMonth = time.Month(o.StartMonth)
	}
	if o.EndMonth > 0 {
		cfg.EndMonth = time.Month(o.EndMonth)
	}
	return cfg.Normalize()
}

// ProjectConfig selects how measure blocks render projects.
type ProjectConfig struct {
	Format ProjectFormat `json:"format"`
}

// DividerConfig styles divider blocks.
type DividerConfig struct {
	Style string `json:"style"`
}

// ChartConfig lists the charts a chart block embeds.
type ChartConfig struct {
	Charts  []string `json:"charts"`
	Columns int      `json:"columns"`
	ThemeID string   `json:"themeId"`
}

// ImageConfig is a static image block.
type ImageConfig struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

// Block is one declarative unit of a template.
type Block struct {
	ID                   string                `json:"id"`
	Element              Element               `json:"element"`
	Target               string                `json:"dataSourceTarget"`
	Title                string                `json:"title"`
	Content              string                `json:"content"`
	Level                int                   `json:"level"`
	Fields               []string              `json:"fields"`
	CustomLabels         map[string]string     `json:"customLabels"`
	Display              string                `json:"display"`
	TableLayout          string                `json:"tableLayout"`
	Organize             Organize              `json:"organize"`
	EquipmentConfig      table.EquipmentFilter `json:"equipmentConfig"`
	ProjectConfig        ProjectConfig         `json:"projectConfig"`
	DividerConfig        DividerConfig         `json:"dividerConfig"`
	ChartConfig          ChartConfig           `json:"chartConfig"`
	Image                ImageConfig           `json:"image"`
	ShowImages           bool                  `json:"showImages"`
	ShowTotals           bool                  `json:"showTotals"`
	ShowEmptyPlaceholder bool                  `json:"showEmptyPlaceholder"`
	EmptyText            string                `json:"emptyText"`

	target table.Target
	period period.Config
}

// DataSource returns the validated data-source target.
func (b Block) DataSource() table.Target {
	if b.target == "" {
		return table.TargetBuilding
	}
	return b.target
}

// Template is a report template document.
type Template struct {
	ID            string       `json:"_id"`
	Name          string       `json:"name"`
	Header        HeaderFooter `json:"header"`
	Footer        HeaderFooter `json:"footer"`
	Config        Config       `json:"config"`
	Body          []Block      `json:"body"`
	Attachments   []string     `json:"attachments"`
	StyleDocument string       `json:"styleDocument"`
}

// DecodeTemplate parses and validates a template document.
func DecodeTemplate(id string, raw []byte) (Template, error) {
	var t Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if id != "" {
		t.ID = id
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// Validate checks the document config and every block, resolving targets,
// field paths and period options once.
func (t *Template) Validate() error {
	switch d := t.Config.TableOfContentsDepth; {
	case d == 0:
		t.Config.TableOfContentsDepth = defaultTOCDepth
	case d < 1 || d > maxTOCDepth:
		return fmt.Errorf("%w: table of contents depth %d outside 1..%d", ErrInvalidTemplate, d, maxTOCDepth)
	}
	for i := range t.Body {
		if err := t.Body[i].validate(); err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrInvalidTemplate, i, err)
		}
	}
	return nil
}

func (b *Block) validate() error {
	if b.Element == "" {
		b.Element = ElementParagraph
	}
	element, err := ParseElement(string(b.Element))
	if err != nil {
		return err
	}
	b.Element = element
	target, err := table.ParseTarget(b.Target)
	if err != nil {
		return err
	}
	b.target = target
	for _, raw := range b.Fields {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := field.ParsePath(raw); err != nil {
			return fmt.Errorf("field %q: %w", raw, err)
		}
	}
	cfg, err := b.Organize.Period()
	if err != nil {
		return err
	}
	b.period = cfg
	if b.Element == ElementChart && b.ChartConfig.Columns != 0 && b.ChartConfig.Columns != 1 && b.ChartConfig.Columns != 2 {
		return fmt.Errorf("chart columns %d", b.ChartConfig.Columns)
	}
	if b.target == table.TargetMeasure {
		format, err := ParseProjectFormat(string(b.ProjectConfig.Format))
		if err != nil {
			return err
		}
		b.ProjectConfig.Format = format
	}
	return nil
}
