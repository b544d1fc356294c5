package services

import (
	"math"
	"time"

	"kglogistics/models"
	"kglogistics/utils"
)

// LeadStats is the lead dashboard summary.
type LeadStats struct {
	Total                   int                       `json:"total"`
	StatusCounts            map[models.LeadStatus]int `json:"statusCounts"`
	FormTypeCounts          map[models.FormType]int   `json:"formTypeCounts"`
	ConversionRate          float64                   `json:"conversionRate"`
	QuotesWithValues        int                       `json:"quotesWithValues"`
	RecentLeads             int                       `json:"recentLeads"`
	WeeklyLeads             int                       `json:"weeklyLeads"`
	AvgOpenQuote            float64                   `json:"avgOpenQuote"`
	AvgEnclosedQuote        float64                   `json:"avgEnclosedQuote"`
	TotalOpenQuoteValue     float64                   `json:"totalOpenQuoteValue"`
	TotalEnclosedQuoteValue float64                   `json:"totalEnclosedQuoteValue"`
}

// LoadStats is the load dashboard summary.
type LoadStats struct {
	Total             int                       `json:"total"`
	StatusCounts      map[models.LoadStatus]int `json:"statusCounts"`
	LoadTypeCounts    map[models.LoadType]int   `json:"loadTypeCounts"`
	TotalIncome       float64                   `json:"totalIncome"`
	TotalProfit       float64                   `json:"totalProfit"`
	AvgProfit         float64                   `json:"avgProfit"`
	TotalRevenue      float64                   `json:"totalRevenue"`
	TotalCarrierCosts float64                   `json:"totalCarrierCosts"`
	ProfitMargin      float64                   `json:"profitMargin"`
	CompletionRate    float64                   `json:"completionRate"`
	RecentLoads       int                       `json:"recentLoads"`
	WeeklyLoads       int                       `json:"weeklyLoads"`
	AvgDaysToComplete float64                   `json:"avgDaysToComplete"`
	CompletedCount    int                       `json:"completedCount"`
}

// ComputeLeadStats aggregates leads for display. Nothing downstream depends
// on these numbers.
func ComputeLeadStats(leads []models.Lead, now time.Time) LeadStats {
	st := LeadStats{
		Total:          len(leads),
		StatusCounts:   make(map[models.LeadStatus]int, len(models.LeadStatuses)),
		FormTypeCounts: map[models.FormType]int{models.FormTypeContact: 0, models.FormTypeShippingQuote: 0},
	}
	for _, s := range models.LeadStatuses {
		st.StatusCounts[s] = 0
	}

	monthAgo := now.AddDate(0, 0, -30)
	weekAgo := now.AddDate(0, 0, -7)
	var openCount, enclosedCount int

	for _, l := range leads {
		if _, ok := st.StatusCounts[l.Status]; ok {
			st.StatusCounts[l.Status]++
		}
		if _, ok := st.FormTypeCounts[l.FormType]; ok {
			st.FormTypeCounts[l.FormType]++
		}
		if !utils.IsBlank(l.OpenQuote) || !utils.IsBlank(l.EnclosedQuote) {
			st.QuotesWithValues++
		}
		if !l.CreatedAt.Before(monthAgo) {
			st.RecentLeads++
		}
		if !l.CreatedAt.Before(weekAgo) {
			st.WeeklyLeads++
		}
		if !utils.IsBlank(l.OpenQuote) {
			openCount++
			st.TotalOpenQuoteValue += utils.ParseAmount(l.OpenQuote)
		}
		if !utils.IsBlank(l.EnclosedQuote) {
			enclosedCount++
			st.TotalEnclosedQuoteValue += utils.ParseAmount(l.EnclosedQuote)
		}
	}

	st.ConversionRate = percent(st.StatusCounts[models.LeadStatusConverted], st.Total)
	if openCount > 0 {
		st.AvgOpenQuote = math.Round(st.TotalOpenQuoteValue / float64(openCount))
	}
	if enclosedCount > 0 {
		st.AvgEnclosedQuote = math.Round(st.TotalEnclosedQuoteValue / float64(enclosedCount))
	}
	st.TotalOpenQuoteValue = math.Round(st.TotalOpenQuoteValue)
	st.TotalEnclosedQuoteValue = math.Round(st.TotalEnclosedQuoteValue)
	return st
}

// ComputeLoadStats aggregates loads for display. Income, profit and margin
// consider completed loads only; revenue and carrier costs consider all.
func ComputeLoadStats(loads []models.Load, now time.Time) LoadStats {
	st := LoadStats{
		Total:          len(loads),
		StatusCounts:   make(map[models.LoadStatus]int, len(models.LoadStatuses)),
		LoadTypeCounts: map[models.LoadType]int{models.LoadTypeOpen: 0, models.LoadTypeEnclosed: 0},
	}
	for _, s := range models.LoadStatuses {
		st.StatusCounts[s] = 0
	}

	monthAgo := now.AddDate(0, 0, -30)
	weekAgo := now.AddDate(0, 0, -7)
	var (
		marginSum     float64
		marginLoads   int
		daysSum       float64
		daysLoads     int
		completedLoad int
	)

	for _, l := range loads {
		if _, ok := st.StatusCounts[l.Status]; ok {
			st.StatusCounts[l.Status]++
		}
		if _, ok := st.LoadTypeCounts[l.LoadType]; ok {
			st.LoadTypeCounts[l.LoadType]++
		}
		if !l.CreatedAt.Before(monthAgo) {
			st.RecentLoads++
		}
		if !l.CreatedAt.Before(weekAgo) {
			st.WeeklyLoads++
		}

		quoted := utils.ParseAmount(l.QuotedCost)
		carrier := utils.ParseAmount(l.CarrierCost)
		st.TotalRevenue += quoted
		st.TotalCarrierCosts += carrier

		if l.Status != models.LoadStatusCompleted {
			continue
		}
		completedLoad++
		st.TotalIncome += quoted

		if !utils.IsBlank(l.QuotedCost) && !utils.IsBlank(l.CarrierCost) {
			if profit := l.ComputeProfit(); profit != nil {
				st.TotalProfit += *profit
			}
			marginLoads++
			if quoted > 0 {
				marginSum += (quoted - carrier) / quoted * 100
			}
		}
		if l.CompletedAt != nil {
			daysLoads++
			daysSum += math.Ceil(l.CompletedAt.Sub(l.CreatedAt).Hours() / 24)
		}
	}

	st.CompletedCount = st.StatusCounts[models.LoadStatusCompleted]
	st.CompletionRate = percent(st.CompletedCount, st.Total)
	if completedLoad > 0 {
		st.AvgProfit = st.TotalProfit / float64(completedLoad)
	}
	if marginLoads > 0 {
		st.ProfitMargin = round1(marginSum / float64(marginLoads))
	}
	if daysLoads > 0 {
		st.AvgDaysToComplete = round1(daysSum / float64(daysLoads))
	}
	return st
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
