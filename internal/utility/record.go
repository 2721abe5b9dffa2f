package utility

import (
	"time"

	"github.com/buildsight/buildsight/internal/period"
)

// MeterRead is one billing period of a metered fuel.
type MeterRead struct {
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	TotalUsage float64   `json:"totalUsage"`
	TotalCost  float64   `json:"totalCost"`
	Demand     float64   `json:"demand"`
	DemandCost float64   `json:"demandCost"`
}

// Delivery is one dated purchase of a delivered fuel.
type Delivery struct {
	DeliveryDate time.Time `json:"deliveryDate"`
	Quantity     float64   `json:"quantity"`
	TotalCost    float64   `json:"totalCost"`
}

// Utility is one utility account of a building.
type Utility struct {
	ID          string      `json:"_id"`
	UtilType    string      `json:"utilType"`
	MeterNumber string      `json:"meterNumber"`
	MeterData   []MeterRead `json:"meterData"`
	Deliveries  []Delivery  `json:"deliveries"`
}

// Fuel returns the normalised fuel type.
func (u Utility) Fuel() FuelType { return ParseFuel(u.UtilType) }

// Entries flattens reads and deliveries into dated entries.
func (u Utility) Entries() []Entry {
	fuel := u.Fuel()
	out := make([]Entry, 0, len(u.MeterData)+len(u.Deliveries))
	for _, r := range u.MeterData {
		out = append(out, Entry{
			Fuel:       fuel,
			Date:       period.Midpoint(r.StartDate, r.EndDate),
			Days:       period.Range{Start: r.StartDate, End: r.EndDate}.Days(),
			Usage:      r.TotalUsage,
			Cost:       r.TotalCost,
			Demand:     r.Demand,
			DemandCost: r.DemandCost,
		})
	}
	for _, d := range u.Deliveries {
		out = append(out, Entry{
			Fuel:  fuel,
			Date:  d.DeliveryDate,
			Days:  1,
			Usage: d.Quantity,
			Cost:  d.TotalCost,
		})
	}
	return out
}

// Entry is a dated usage record. Meter reads are placed at the median of their
// billing period, deliveries at the delivery date.
type Entry struct {
	Fuel       FuelType
	Date       time.Time
	Days       int
	Usage      float64
	Cost       float64
	Demand     float64
	DemandCost float64
}

// RepresentativeDate places the entry on the calendar for bucketing.
func (e Entry) RepresentativeDate() time.Time { return e.Date }

// MonthlyUtility is one row per building per month per fuel type.
type MonthlyUtility struct {
	BuildingID string  `json:"building"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	UtilType   string  `json:"utilType"`
	Usage      float64 `json:"usage"`
	Cost       float64 `json:"cost"`
	Demand     float64 `json:"demand"`
	DemandCost float64 `json:"demandCost"`
}

// Fuel returns the normalised fuel type.
func (m MonthlyUtility) Fuel() FuelType { return ParseFuel(m.UtilType) }

// RepresentativeDate is the middle of the row's month.
func (m MonthlyUtility) RepresentativeDate() time.Time {
	return time.Date(m.Year, time.Month(m.Month), 15, 0, 0, 0, 0, time.UTC)
}

// Entry converts the row into a dated entry.
func (m MonthlyUtility) Entry() Entry {
	start := time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
	return Entry{
		Fuel:       m.Fuel(),
		Date:       m.RepresentativeDate(),
		Days:       start.AddDate(0, 1, -1).Day(),
		Usage:      m.Usage,
		Cost:       m.Cost,
		Demand:     m.Demand,
		DemandCost: m.DemandCost,
	}
}

// FilterEntries keeps entries inside window.
func FilterEntries(entries []Entry, window period.Range) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if window.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// FilterMonthly keeps monthly rows inside window.
func FilterMonthly(rows []MonthlyUtility, window period.Range) []MonthlyUtility {
	out := make([]MonthlyUtility, 0, len(rows))
	for _, m := range rows {
		if window.Contains(m.RepresentativeDate()) {
			out = append(out, m)
		}
	}
	return out
}
