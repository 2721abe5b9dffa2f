// Package table turns data-source bindings of template blocks into table markup.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTarget indicates a data-source target outside the closed set.
var ErrUnknownTarget = errors.New("table: unknown data source target")

// Target is the data-source category a block binds to.
type Target string

const (
	TargetBenchmark       Target = "benchmark"
	TargetOverview        Target = "overview"
	TargetUtility         Target = "utility"
	TargetLocation        Target = "location"
	TargetContact         Target = "contact"
	TargetConstruction    Target = "construction"
	TargetEquipment       Target = "equipmentBlock"
	TargetOperation       Target = "operation"
	TargetAudit           Target = "audit"
	TargetMeasure         Target = "measure"
	TargetEndUseBreakdown Target = "endusebreakdown"
	TargetDivider         Target = "divider"
	TargetAddress         Target = "address"
	TargetChart           Target = "chart"
	TargetImage           Target = "image"
	// TargetBuilding binds plain building fields; it is the generic fallback.
	TargetBuilding Target = "building"
)

var targets = map[string]Target{}

func init() {
	for _, t := range []Target{
		TargetBenchmark, TargetOverview, TargetUtility, TargetLocation, TargetContact,
		TargetConstruction, TargetEquipment, TargetOperation, TargetAudit, TargetMeasure,
		TargetEndUseBreakdown, TargetDivider, TargetAddress, TargetChart, TargetImage, TargetBuilding,
	} {
		targets[strings.ToLower(string(t))] = t
	}
	targets["equipment"] = TargetEquipment
	targets["enduse"] = TargetEndUseBreakdown
}

// ParseTarget validates a raw target name. An empty name selects TargetBuilding.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TargetBuilding, nil
	}
	if t, ok := targets[strings.ToLower(raw)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, raw)
}

// Tabular reports whether the target is rendered by this package.
func (t Target) Tabular() bool {
	switch t {
	case TargetBenchmark, TargetOverview, TargetUtility, TargetLocation, TargetContact,
		TargetConstruction, TargetEquipment, TargetOperation, TargetEndUseBreakdown, TargetBuilding:
		return true
	default:
		return false
	}
}
