package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kglogistics/models"
	"kglogistics/utils"
)

var statsNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func TestComputeLeadStatsEmpty(t *testing.T) {
	st := ComputeLeadStats(nil, statsNow)

	assert.Equal(t, 0, st.Total)
	assert.Equal(t, 0.0, st.ConversionRate)
	assert.Len(t, st.StatusCounts, 5)
	assert.Equal(t, 0, st.FormTypeCounts[models.FormTypeContact])
}

func TestComputeLeadStats(t *testing.T) {
	leads := []models.Lead{
		{Status: models.LeadStatusConverted, FormType: models.FormTypeShippingQuote, CreatedAt: statsNow.AddDate(0, 0, -1), OpenQuote: utils.Pointer("1000"), EnclosedQuote: utils.Pointer("1500")},
		{Status: models.LeadStatusNew, FormType: models.FormTypeShippingQuote, CreatedAt: statsNow.AddDate(0, 0, -10), OpenQuote: utils.Pointer("1201")},
		{Status: models.LeadStatusNew, FormType: models.FormTypeContact, CreatedAt: statsNow.AddDate(0, 0, -40), OpenQuote: utils.Pointer("abc")},
	}

	st := ComputeLeadStats(leads, statsNow)

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.StatusCounts[models.LeadStatusNew])
	assert.Equal(t, 1, st.StatusCounts[models.LeadStatusConverted])
	assert.Equal(t, 0, st.StatusCounts[models.LeadStatusLost])
	assert.Equal(t, 2, st.FormTypeCounts[models.FormTypeShippingQuote])
	assert.Equal(t, 1, st.FormTypeCounts[models.FormTypeContact])
	assert.Equal(t, 33.3, st.ConversionRate)
	assert.Equal(t, 3, st.QuotesWithValues)
	assert.Equal(t, 2, st.RecentLeads)
	assert.Equal(t, 1, st.WeeklyLeads)
	// "abc" counts as a quote worth 0.
	assert.Equal(t, 2201.0, st.TotalOpenQuoteValue)
	assert.Equal(t, 734.0, st.AvgOpenQuote)
	assert.Equal(t, 1500.0, st.AvgEnclosedQuote)
	assert.Equal(t, 1500.0, st.TotalEnclosedQuoteValue)
}

func TestComputeLoadStats(t *testing.T) {
	completedAt := statsNow.AddDate(0, 0, -1)
	loads := []models.Load{
		{
			Status: models.LoadStatusCompleted, LoadType: models.LoadTypeOpen,
			QuotedCost: utils.Pointer("1000"), CarrierCost: utils.Pointer("800"),
			CreatedAt: statsNow.AddDate(0, 0, -4), CompletedAt: &completedAt,
		},
		{
			Status: models.LoadStatusCompleted, LoadType: models.LoadTypeEnclosed,
			QuotedCost: utils.Pointer("2000"), CarrierCost: utils.Pointer("1000"),
			CreatedAt: statsNow.AddDate(0, 0, -20), CompletedAt: &completedAt,
		},
		{
			Status: models.LoadStatusListed, LoadType: models.LoadTypeOpen,
			QuotedCost: utils.Pointer("500"),
			CreatedAt:  statsNow.AddDate(0, 0, -60),
		},
		{
			Status: models.LoadStatusCompleted, LoadType: models.LoadTypeOpen,
			QuotedCost: utils.Pointer("300"),
			CreatedAt:  statsNow.AddDate(0, 0, -2),
		},
	}

	st := ComputeLoadStats(loads, statsNow)

	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.CompletedCount)
	assert.Equal(t, 1, st.StatusCounts[models.LoadStatusListed])
	assert.Equal(t, 3, st.LoadTypeCounts[models.LoadTypeOpen])
	assert.Equal(t, 1, st.LoadTypeCounts[models.LoadTypeEnclosed])
	assert.Equal(t, 3300.0, st.TotalIncome)
	assert.Equal(t, 1200.0, st.TotalProfit)
	assert.Equal(t, 400.0, st.AvgProfit)
	assert.Equal(t, 3800.0, st.TotalRevenue)
	assert.Equal(t, 1800.0, st.TotalCarrierCosts)
	// (20% + 50%) / 2
	assert.Equal(t, 35.0, st.ProfitMargin)
	assert.Equal(t, 75.0, st.CompletionRate)
	assert.Equal(t, 3, st.RecentLoads)
	assert.Equal(t, 2, st.WeeklyLoads)
	// 3 days and 19 days
	assert.Equal(t, 11.0, st.AvgDaysToComplete)
}
