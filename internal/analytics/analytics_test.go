package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-tracker/internal/store"
)

type fakeReader struct {
	categories []store.CategoryTotal
	months     []store.MonthTotal
	merchants  []store.MerchantTotal
	bounds     *store.DateBounds
	err        error

	merchantLimit int
	boundsCalls   int
}

func (f *fakeReader) GroupByCategory(context.Context, string, string) ([]store.CategoryTotal, error) {
	return f.categories, f.err
}

func (f *fakeReader) GroupByMonth(context.Context, string) ([]store.MonthTotal, error) {
	return f.months, f.err
}

func (f *fakeReader) GroupByMerchant(_ context.Context, _, _ string, limit int) ([]store.MerchantTotal, error) {
	f.merchantLimit = limit
	return f.merchants, f.err
}

func (f *fakeReader) Bounds(context.Context, string, string) (*store.DateBounds, error) {
	f.boundsCalls++
	return f.bounds, f.err
}

func strPtr(s string) *string { return &s }

func TestSpendingByCategory(t *testing.T) {
	reader := &fakeReader{
		categories: []store.CategoryTotal{
			{Category: strPtr("Groceries"), TotalAmount: 300, Count: 12},
			{Category: strPtr("Transport"), TotalAmount: 100, Count: 4},
			{Category: nil, TotalAmount: 100, Count: 2},
		},
	}
	agg := New(reader, zerolog.Nop())

	report, err := agg.SpendingByCategory(context.Background(), "2025-01-01", "2025-06-30")
	require.NoError(t, err)

	assert.Equal(t, 500.0, report.TotalSpending)
	assert.Equal(t, int64(18), report.TotalTransactions)
	assert.Equal(t, 3, report.CategoryCount)
	require.NotNil(t, report.TopCategory)
	assert.Equal(t, "Groceries", *report.TopCategory)
	assert.Equal(t, "2025-01-01", report.DateRange.StartDate)

	require.Len(t, report.Categories, 3)
	assert.Equal(t, 60.0, report.Categories[0].Percentage)
	assert.Equal(t, 20.0, report.Categories[1].Percentage)
	// uncategorized spend is reported under a null category
	assert.Nil(t, report.Categories[2].Category)
	assert.Equal(t, 20.0, report.Categories[2].Percentage)
}

func TestSpendingByCategory_Empty(t *testing.T) {
	agg := New(&fakeReader{}, zerolog.Nop())

	report, err := agg.SpendingByCategory(context.Background(), "", "")
	require.NoError(t, err)
	assert.Zero(t, report.TotalSpending)
	assert.Zero(t, report.TotalTransactions)
	assert.Empty(t, report.Categories)
	assert.Nil(t, report.TopCategory)
}

func TestMonthlyTrend(t *testing.T) {
	reader := &fakeReader{
		months: []store.MonthTotal{
			{Key: store.MonthKey{Year: "2025", Month: "01"}, TotalAmount: 100, TransactionCount: 10},
			{Key: store.MonthKey{Year: "2025", Month: "02"}, TotalAmount: 150, TransactionCount: 12},
			{Key: store.MonthKey{Year: "2025", Month: "03"}, TotalAmount: 90, TransactionCount: 8},
		},
	}
	agg := New(reader, zerolog.Nop())

	report, err := agg.MonthlyTrend(context.Background(), "2025")
	require.NoError(t, err)
	require.Len(t, report.Months, 3)

	assert.Equal(t, "January", report.Months[0].MonthName)
	assert.Zero(t, report.Months[0].ChangeFromPrevious)
	assert.Equal(t, 50.0, report.Months[1].ChangeFromPrevious)
	assert.Equal(t, -40.0, report.Months[2].ChangeFromPrevious)

	assert.Equal(t, 340.0, report.Summary.TotalSpending)
	assert.InDelta(t, 113.33, report.Summary.AverageMonthlySpending, 0.01)
	assert.Equal(t, "February", report.Summary.HighestMonth)
	assert.Equal(t, 150.0, report.Summary.HighestAmount)
	assert.Equal(t, "March", report.Summary.LowestMonth)
	assert.Equal(t, 90.0, report.Summary.LowestAmount)
}

func TestMonthlyTrend_EmptyYear(t *testing.T) {
	agg := New(&fakeReader{}, zerolog.Nop())

	report, err := agg.MonthlyTrend(context.Background(), "2024")
	require.NoError(t, err)
	assert.Equal(t, "2024", report.Year)
	assert.Empty(t, report.Months)
	assert.Zero(t, report.Summary.TotalSpending)
	assert.Zero(t, report.Summary.AverageMonthlySpending)
}

func TestTopMerchants(t *testing.T) {
	reader := &fakeReader{
		merchants: []store.MerchantTotal{
			{Name: "Acme Groceries", TotalAmount: 420.555, TransactionCount: 10, AverageTransaction: 42.0555},
			{Name: "Metro Transit", TotalAmount: 88, TransactionCount: 22, AverageTransaction: 4},
		},
	}
	agg := New(reader, zerolog.Nop())

	report, err := agg.TopMerchants(context.Background(), "2025-01-01", "2025-06-30", 5)
	require.NoError(t, err)

	assert.Equal(t, 5, reader.merchantLimit)
	require.Len(t, report.Merchants, 2)
	assert.Equal(t, 420.56, report.Merchants[0].TotalAmount)
	assert.Equal(t, 42.06, report.Merchants[0].AverageTransaction)
	// explicit range means no bounds query
	assert.Zero(t, reader.boundsCalls)
	assert.Equal(t, "2025-01-01", report.DateRange.StartDate)
}

func TestTopMerchants_DefaultLimitAndBounds(t *testing.T) {
	reader := &fakeReader{
		merchants: []store.MerchantTotal{{Name: "Acme", TotalAmount: 10, TransactionCount: 1}},
		bounds:    &store.DateBounds{Min: "2024-11-02", Max: "2025-05-20"},
	}
	agg := New(reader, zerolog.Nop())

	report, err := agg.TopMerchants(context.Background(), "", "", 0)
	require.NoError(t, err)

	assert.Equal(t, defaultMerchantLimit, reader.merchantLimit)
	assert.Equal(t, 1, reader.boundsCalls)
	assert.Equal(t, "2024-11-02", report.DateRange.StartDate)
	assert.Equal(t, "2025-05-20", report.DateRange.EndDate)
}

func TestReaderErrorPropagates(t *testing.T) {
	reader := &fakeReader{err: errors.New("aggregation failed")}
	agg := New(reader, zerolog.Nop())

	_, err := agg.SpendingByCategory(context.Background(), "", "")
	assert.Error(t, err)

	_, err = agg.MonthlyTrend(context.Background(), "2025")
	assert.Error(t, err)

	_, err = agg.TopMerchants(context.Background(), "", "", 0)
	assert.Error(t, err)
}
