package core

import "math"

// CategorySum is the total amount for one category.
type CategorySum struct {
	Name string  `json:"name"`
	Sum  float64 `json:"sum"`
}

// MonthSum is the total amount for one calendar month, Month formatted as yyyy-MM.
type MonthSum struct {
	Month string  `json:"month"`
	Sum   float64 `json:"sum"`
}

// AnalyticsResult is the report produced by the analyzer for a date range.
type AnalyticsResult struct {
	ByCategory []CategorySum `json:"by_category"`
	ByMonth    []MonthSum    `json:"by_month"`
	Total      float64       `json:"total"`
}

// Normalize replaces nil sequences with empty ones so that a result always
// encodes as arrays.
func (r *AnalyticsResult) Normalize() {
	if r.ByCategory == nil {
		r.ByCategory = []CategorySum{}
	}
	if r.ByMonth == nil {
		r.ByMonth = []MonthSum{}
	}
}

// CategoryTotal sums ByCategory.
func (r AnalyticsResult) CategoryTotal() float64 {
	var s float64
	for _, c := range r.ByCategory {
		s += c.Sum
	}
	return s
}

// MonthTotal sums ByMonth.
func (r AnalyticsResult) MonthTotal() float64 {
	var s float64
	for _, m := range r.ByMonth {
		s += m.Sum
	}
	return s
}

// Consistent reports whether Total matches both the category and the month
// breakdowns within tol.
func (r AnalyticsResult) Consistent(tol float64) bool {
	return math.Abs(r.Total-r.CategoryTotal()) <= tol && math.Abs(r.Total-r.MonthTotal()) <= tol
}
