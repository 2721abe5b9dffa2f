// Package building exposes the typed fields the report pipeline needs from a
// building document while keeping the raw document for dot-path resolution.
package building

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buildsight/buildsight/internal/field"
)

// ErrMissingBenchmarkData indicates a building lacks the area needed for intensity figures.
var ErrMissingBenchmarkData = errors.New("building: square footage is required for benchmarking")

// Building is an immutable snapshot of one building document.
type Building struct {
	ID                    string
	Name                  string
	UseType               string
	ZipCode               string
	SquareFootage         float64
	PortfolioManagerScore float64
	UtilityIDs            []string
	FieldsEdited          []string
	Rates                 map[string]float64
	GHGFactors            map[string]float64
	Doc                   field.Doc
}

// Decode parses a JSON building document.
func Decode(id string, raw []byte) (Building, error) {
	var doc field.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Building{}, fmt.Errorf("building: decode %s: %w", id, err)
	}
	return FromDoc(id, doc), nil
}

// FromDoc lifts the typed fields out of doc.
func FromDoc(id string, doc field.Doc) Building {
	if doc == nil {
		doc = field.Doc{}
	}
	b := Building{
		ID:           id,
		Name:         field.LookupString(doc, "buildingName"),
		UseType:      field.LookupString(doc, "buildingUse"),
		ZipCode:      field.LookupString(doc, "location.zipCode"),
		UtilityIDs:   stringList(doc, "utilityIds"),
		FieldsEdited: stringList(doc, "fieldsEdited"),
		Rates:        numberMap(doc, "rates"),
		GHGFactors:   numberMap(doc, "ghgFactors"),
		Doc:          doc,
	}
	if v, ok := field.Lookup(doc, "squareFeet"); ok {
		b.SquareFootage, _ = field.ToFloat(v)
	}
	if v, ok := field.Lookup(doc, "benchmark.portfolioManagerScore"); ok {
		b.PortfolioManagerScore, _ = field.ToFloat(v)
	}
	return b
}

// RequireBenchmarkData validates the fields benchmarking tables divide by.
func (b Building) RequireBenchmarkData() error {
	if b.SquareFootage <= 0 {
		return ErrMissingBenchmarkData
	}
	return nil
}

// Edited reports whether the user manually edited key, e.g. a fuel rate.
func (b Building) Edited(key string) bool {
	for _, k := range b.FieldsEdited {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Rows returns the list stored at key as documents, skipping non-object entries.
func (b Building) Rows(key string) []field.Doc {
	v, ok := field.Lookup(b.Doc, key)
	if !ok {
		return nil
	}
	return Docs(v)
}

// Docs converts a decoded JSON array into documents.
func Docs(v any) []field.Doc {
	switch list := v.(type) {
	case []field.Doc:
		return list
	case []any:
		out := make([]field.Doc, 0, len(list))
		for _, item := range list {
			if doc, ok := item.(map[string]any); ok {
				out = append(out, doc)
			}
		}
		return out
	default:
		return nil
	}
}

func stringList(doc field.Doc, key string) []string {
	v, ok := field.Lookup(doc, key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func numberMap(doc field.Doc, key string) map[string]float64 {
	v, ok := field.Lookup(doc, key)
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, item := range raw {
		if n, ok := field.ToFloat(item); ok {
			out[k] = n
		}
	}
	return out
}
