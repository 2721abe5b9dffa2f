package document

import (
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/table"
	"github.com/buildsight/buildsight/internal/utility"
)

// DateLayout is the Joda pattern used for report dates.
const DateLayout = "MMMM d, yyyy"

// Report is the metadata of one report run.
type Report struct {
	// Date is the custom report date, or the generation time when zero.
	Date     time.Time
	Location *time.Location
	ThemeID  string
}

// Bundle is the read-only entity snapshot of one report run.
type Bundle struct {
	Building     building.Building
	Utilities    utility.Result
	User         field.Doc
	Organization field.Doc
	Proposal     field.Doc
	Projects     []field.Doc
	Audit        field.Doc
	Report       Report
}

func (b *Bundle) reportDate(now time.Time) time.Time {
	d := b.Report.Date
	if d.IsZero() {
		d = now
	}
	if b.Report.Location != nil {
		d = d.In(b.Report.Location)
	}
	return d
}

// Rows returns the documents a data-source target binds to.
func (b *Bundle) Rows(t table.Target) []field.Doc {
	bd := b.Building
	switch t {
	case table.TargetBenchmark:
		row := field.Doc{}
		for k, v := range bd.Doc {
			row[k] = v
		}
		if nested, ok := bd.Doc["benchmark"].(map[string]any); ok {
			for k, v := range nested {
				row[k] = v
			}
		}
		return []field.Doc{row}
	case table.TargetLocation:
		return bd.Rows("locations")
	case table.TargetContact:
		return bd.Rows("contacts")
	case table.TargetConstruction:
		return bd.Rows("constructions")
	case table.TargetEquipment:
		return bd.Rows("equipment")
	case table.TargetOperation:
		return bd.Rows("schedules")
	case table.TargetAddress:
		if loc, ok := bd.Doc["location"].(map[string]any); ok {
			return []field.Doc{loc}
		}
		return nil
	case table.TargetAudit:
		if len(b.Audit) == 0 {
			return nil
		}
		return []field.Doc{b.Audit}
	case table.TargetMeasure:
		return b.Projects
	case table.TargetOverview, table.TargetUtility, table.TargetEndUseBreakdown:
		return nil
	default:
		if len(bd.Doc) == 0 {
			return nil
		}
		return []field.Doc{bd.Doc}
	}
}

// Context is the substitution context of paragraph content.
func (b *Bundle) Context(now time.Time) map[string]any {
	bd := field.Doc{"id": b.Building.ID}
	for k, v := range b.Building.Doc {
		bd[k] = v
	}
	window := b.Utilities.Window
	report := map[string]any{
		"date":         jodaTime.Format(DateLayout, b.reportDate(now)),
		"user":         userName(b.User),
		"organization": field.LookupString(b.Organization, "name"),
	}
	if !window.Start.IsZero() {
		report["startDate"] = jodaTime.Format(DateLayout, window.Start)
		report["endDate"] = jodaTime.Format(DateLayout, window.End)
	}
	return map[string]any{
		"building":     bd,
		"utility":      b.Utilities.Summary.Doc(),
		"user":         orEmpty(b.User),
		"organization": orEmpty(b.Organization),
		"proposal":     orEmpty(b.Proposal),
		"projects":     b.Projects,
		"audit":        orEmpty(b.Audit),
		"report":       report,
	}
}

func userName(user field.Doc) string {
	if name := field.LookupString(user, "name"); name != "" {
		return name
	}
	return strings.TrimSpace(field.LookupString(user, "firstName") + " " + field.LookupString(user, "lastName"))
}

func orEmpty(doc field.Doc) field.Doc {
	if doc == nil {
		return field.Doc{}
	}
	return doc
}
