package period

// DegreeDays holds heating and cooling degree days for one calendar month at one zip code.
type DegreeDays struct {
	Year  int
	Month int
	HDD   float64
	CDD   float64
}

// SumDegreeDays totals the rows whose month falls inside span. Fiscal spans
// pull from both calendar years they touch.
func SumDegreeDays(rows []DegreeDays, span Span) (hdd, cdd float64) {
	wanted := make(map[YearMonth]struct{})
	for _, ym := range span.Range().YearMonths() {
		wanted[ym] = struct{}{}
	}
	for _, row := range rows {
		key := YearMonth{Year: row.Year, Month: monthOf(row.Month)}
		if _, ok := wanted[key]; !ok {
			continue
		}
		hdd += row.HDD
		cdd += row.CDD
	}
	return hdd, cdd
}
