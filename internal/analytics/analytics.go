// Package analytics turns the store's grouped aggregates into the spending
// reports served by the analysis endpoints. All computation past the
// database grouping stage (percentages, month-over-month deltas, summary
// stats) happens here.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/store"
)

const defaultMerchantLimit = 10

// DateRange is the inclusive date window a report covers.
type DateRange struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// CategoryReport is the spending-by-category response body. Categories are
// ordered by total spend descending, so the first entry is the top
// category.
type CategoryReport struct {
	Categories        []store.CategoryTotal `json:"spending_by_category"`
	TotalSpending     float64               `json:"total_spending"`
	TotalTransactions int64                 `json:"total_transactions"`
	CategoryCount     int                   `json:"category_count"`
	TopCategory       *string               `json:"top_category"`
	DateRange         DateRange             `json:"date_range"`
}

// MonthEntry is one month in the trend report.
type MonthEntry struct {
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	MonthName        string  `json:"month_name"`
	TotalAmount      float64 `json:"total_amount"`
	TransactionCount int64   `json:"transaction_count"`
	// ChangeFromPrevious is the month-over-month spending change in
	// percent. The first month of the series has no predecessor and
	// reports zero.
	ChangeFromPrevious float64 `json:"change_from_previous"`
}

// TrendSummary aggregates the trend report's months.
type TrendSummary struct {
	AverageMonthlySpending float64 `json:"average_monthly_spending"`
	HighestMonth           string  `json:"highest_month"`
	HighestAmount          float64 `json:"highest_amount"`
	LowestMonth            string  `json:"lowest_month"`
	LowestAmount           float64 `json:"lowest_amount"`
	TotalSpending          float64 `json:"total_spending"`
}

// TrendReport is the monthly-trend response body.
type TrendReport struct {
	Year    string       `json:"year"`
	Months  []MonthEntry `json:"monthly_trend"`
	Summary TrendSummary `json:"summary"`
}

// MerchantReport is the top-merchants response body.
type MerchantReport struct {
	Merchants []store.MerchantTotal `json:"top_merchants"`
	DateRange DateRange             `json:"date_range"`
}

// Aggregator computes spending reports from grouped store results.
type Aggregator struct {
	reader store.AnalyticsReader
	log    zerolog.Logger
	now    func() time.Time
}

// New creates an Aggregator over the given reader.
func New(reader store.AnalyticsReader, log zerolog.Logger) *Aggregator {
	return &Aggregator{reader: reader, log: log, now: time.Now}
}

// SpendingByCategory totals spending per category over the date range and
// attaches each category's share of the overall total.
func (a *Aggregator) SpendingByCategory(ctx context.Context, startDate, endDate string) (*CategoryReport, error) {
	buckets, err := a.reader.GroupByCategory(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("SpendingByCategory: %w", err)
	}

	report := &CategoryReport{
		Categories:    buckets,
		CategoryCount: len(buckets),
		DateRange:     DateRange{StartDate: startDate, EndDate: endDate},
	}
	if len(buckets) > 0 {
		report.TopCategory = buckets[0].Category
	}
	for _, b := range buckets {
		report.TotalSpending += b.TotalAmount
		report.TotalTransactions += b.Count
	}
	report.TotalSpending = round2(report.TotalSpending)

	for i := range report.Categories {
		c := &report.Categories[i]
		c.TotalAmount = round2(c.TotalAmount)
		if report.TotalSpending > 0 {
			c.Percentage = round2(c.TotalAmount / report.TotalSpending * 100)
		}
	}

	a.log.Info().
		Int("categories", len(buckets)).
		Float64("total", report.TotalSpending).
		Msg("Computed spending by category")
	return report, nil
}

// MonthlyTrend totals spending per calendar month of the given year and
// computes the month-over-month change. An empty year means the current
// year.
func (a *Aggregator) MonthlyTrend(ctx context.Context, year string) (*TrendReport, error) {
	if year == "" {
		year = strconv.Itoa(a.now().Year())
	}

	buckets, err := a.reader.GroupByMonth(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("MonthlyTrend %s: %w", year, err)
	}

	report := &TrendReport{Year: year, Months: make([]MonthEntry, 0, len(buckets))}
	for idx, b := range buckets {
		y, _ := strconv.Atoi(b.Key.Year)
		m, _ := strconv.Atoi(b.Key.Month)

		entry := MonthEntry{
			Year:             y,
			Month:            m,
			MonthName:        monthName(m),
			TotalAmount:      round2(b.TotalAmount),
			TransactionCount: b.TransactionCount,
		}
		if idx > 0 && buckets[idx-1].TotalAmount > 0 {
			prev := buckets[idx-1].TotalAmount
			entry.ChangeFromPrevious = round2((b.TotalAmount - prev) / prev * 100)
		}
		report.Months = append(report.Months, entry)
	}

	report.Summary = summarize(report.Months)

	a.log.Info().
		Str("year", year).
		Int("months", len(report.Months)).
		Msg("Computed monthly trend")
	return report, nil
}

// TopMerchants ranks merchants by total spending over the date range. When
// no range is given, the report's date_range reflects the actual bounds of
// the stored data.
func (a *Aggregator) TopMerchants(ctx context.Context, startDate, endDate string, limit int) (*MerchantReport, error) {
	if limit <= 0 {
		limit = defaultMerchantLimit
	}

	buckets, err := a.reader.GroupByMerchant(ctx, startDate, endDate, limit)
	if err != nil {
		return nil, fmt.Errorf("TopMerchants: %w", err)
	}
	for i := range buckets {
		buckets[i].TotalAmount = round2(buckets[i].TotalAmount)
		buckets[i].AverageTransaction = round2(buckets[i].AverageTransaction)
	}

	rng := DateRange{StartDate: startDate, EndDate: endDate}
	if startDate == "" || endDate == "" {
		bounds, err := a.reader.Bounds(ctx, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("TopMerchants: bounds: %w", err)
		}
		if bounds != nil {
			if rng.StartDate == "" {
				rng.StartDate = bounds.Min
			}
			if rng.EndDate == "" {
				rng.EndDate = bounds.Max
			}
		}
	}

	a.log.Info().
		Int("merchants", len(buckets)).
		Int("limit", limit).
		Msg("Computed top merchants")
	return &MerchantReport{Merchants: buckets, DateRange: rng}, nil
}

// summarize derives the trend summary. An empty series yields the zero
// summary rather than an error.
func summarize(months []MonthEntry) TrendSummary {
	if len(months) == 0 {
		return TrendSummary{}
	}

	s := TrendSummary{
		HighestMonth:  months[0].MonthName,
		HighestAmount: months[0].TotalAmount,
		LowestMonth:   months[0].MonthName,
		LowestAmount:  months[0].TotalAmount,
	}
	for _, m := range months {
		s.TotalSpending += m.TotalAmount
		if m.TotalAmount > s.HighestAmount {
			s.HighestMonth, s.HighestAmount = m.MonthName, m.TotalAmount
		}
		if m.TotalAmount < s.LowestAmount {
			s.LowestMonth, s.LowestAmount = m.MonthName, m.TotalAmount
		}
	}
	s.TotalSpending = round2(s.TotalSpending)
	s.AverageMonthlySpending = round2(s.TotalSpending / float64(len(months)))
	return s
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return "Unknown"
	}
	return time.Month(m).String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
