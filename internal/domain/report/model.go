// Package report holds the read models for leaderboards, dashboards and admin reports.
package report

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// MaxWindow is the longest leaderboard or report window.
const MaxWindow = 366 * 24 * time.Hour

// Leaderboard sort metrics.
const (
	MetricConverted = "converted"
	MetricLeads     = "leads"
	MetricFollowUps = "followups"
	MetricDeals     = "deals"
	MetricRevenue   = "revenue"
	MetricVisits    = "visits"
)

// ValidMetrics contains every leaderboard sort metric.
var ValidMetrics = []string{MetricConverted, MetricLeads, MetricFollowUps, MetricDeals, MetricRevenue, MetricVisits}

// Report kinds.
const (
	KindLeads     = "leads"
	KindFollowUps = "followups"
	KindDeals     = "deals"
	KindPayments  = "payments"
	KindVisits    = "visits"
)

// ValidKinds contains every report kind.
var ValidKinds = []string{KindLeads, KindFollowUps, KindDeals, KindPayments, KindVisits}

// Errors
var (
	ErrInvalidMetric = errors.New("sort must be one of: converted, leads, followups, deals, revenue, visits")
	ErrInvalidKind   = errors.New("report must be one of: leads, followups, deals, payments, visits")
	ErrEmptyWindow   = errors.New("from must be before to")
	ErrWindowTooLong = errors.New("window cannot exceed 366 days")
)

// Activity is one employee's counted work inside a window.
type Activity struct {
	AccountID          string `json:"account_id"`
	LeadsCreated       int    `json:"leads_created"`
	LeadsConverted     int    `json:"leads_converted"`
	FollowUpsCompleted int    `json:"followups_completed"`
	DealsWon           int    `json:"deals_won"`
	RevenueWon         int64  `json:"revenue_won"`
	VisitsCompleted    int    `json:"visits_completed"`
}

// LeaderboardRow is an employee's ranked activity.
type LeaderboardRow struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Activity
}

// Leaderboard is the ranked activity of a company inside [From, To).
type Leaderboard struct {
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Sort        string           `json:"sort"`
	Rows        []LeaderboardRow `json:"rows"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Dashboard summarises the work visible to one caller.
type Dashboard struct {
	LeadsByStatus      map[string]int `json:"leads_by_status"`
	FollowUpsDueToday  int            `json:"followups_due_today"`
	FollowUpsOverdue   int            `json:"followups_overdue"`
	OpenDeals          int            `json:"open_deals"`
	OpenDealValue      int64          `json:"open_deal_value"`
	OutstandingBalance int64          `json:"outstanding_balance"`
	VisitsNext7Days    int            `json:"visits_next_7_days"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// Summary aggregates a report's rows.
type Summary struct {
	Total      int            `json:"total"`
	Amount     int64          `json:"amount"`
	ByStatus   map[string]int `json:"by_status"`
	ByEmployee map[string]int `json:"by_employee"`
}

// Report is a tabular export for admins.
type Report struct {
	Kind    string     `json:"kind"`
	From    time.Time  `json:"from"`
	To      time.Time  `json:"to"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary Summary    `json:"summary"`
}

// ValidateWindow checks a half-open [from, to) window.
// PRE: from and to are non-zero
func ValidateWindow(from, to time.Time) error {
	if !from.Before(to) {
		return ErrEmptyWindow
	}
	if to.Sub(from) > MaxWindow {
		return ErrWindowTooLong
	}
	return nil
}

// IsValidMetric reports whether m is a leaderboard sort metric.
func IsValidMetric(m string) bool {
	for _, v := range ValidMetrics {
		if v == m {
			return true
		}
	}
	return false
}

// IsValidKind reports whether k is a report kind.
func IsValidKind(k string) bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Value returns the activity figure a metric ranks on.
func (a Activity) Value(metric string) int64 {
	switch metric {
	case MetricLeads:
		return int64(a.LeadsCreated)
	case MetricFollowUps:
		return int64(a.FollowUpsCompleted)
	case MetricDeals:
		return int64(a.DealsWon)
	case MetricRevenue:
		return a.RevenueWon
	case MetricVisits:
		return int64(a.VisitsCompleted)
	}
	return int64(a.LeadsConverted)
}

// Rank orders rows by metric descending, then name ascending, and assigns
// competition ranks: equal metric values share a rank and the next distinct
// value skips ahead (1, 1, 3).
// POST: rows sorted in place; Rank set on every row
func Rank(rows []LeaderboardRow, metric string) {
	sort.SliceStable(rows, func(i, j int) bool {
		vi, vj := rows[i].Value(metric), rows[j].Value(metric)
		if vi != vj {
			return vi > vj
		}
		ni, nj := strings.ToLower(rows[i].Name), strings.ToLower(rows[j].Name)
		if ni != nj {
			return ni < nj
		}
		return rows[i].AccountID < rows[j].AccountID
	})
	for i := range rows {
		if i > 0 && rows[i].Value(metric) == rows[i-1].Value(metric) {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
}
