package projections

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crm/internal/adapters/cache"
	"crm/internal/adapters/spreadsheet"
	"crm/internal/application/listutil"
	"crm/internal/domain/report"
)

// DefaultLeaderboardTTL is used when no TTL is configured.
const DefaultLeaderboardTTL = 5 * time.Minute

// LeaderboardQuery carries the window and ranking metric.
type LeaderboardQuery struct {
	CompanyID string
	From      time.Time // zero with To zero means the current calendar month
	To        time.Time // exclusive
	Sort      string    // empty means converted
}

// GetLeaderboardDeps holds dependencies for the leaderboard projection.
type GetLeaderboardDeps struct {
	ReportStore  ReportStore
	AccountStore AccountStore
	Cache        *cache.Loader // optional
	TTL          time.Duration
}

// QueryGetLeaderboard ranks the company's accounts by activity inside the window.
// PRE: From < To, window <= 366 days (when given)
// POST: every non-disabled account appears, plus disabled ones with activity;
// ranks follow competition ranking on the sort metric
func QueryGetLeaderboard(ctx context.Context, query LeaderboardQuery, deps GetLeaderboardDeps) (report.Leaderboard, error) {
	q, err := normalizeLeaderboardQuery(query, timeNow())
	if err != nil {
		return report.Leaderboard{}, err
	}
	load := func(ctx context.Context) (report.Leaderboard, error) {
		return buildLeaderboard(ctx, q, deps)
	}
	if deps.Cache == nil {
		return load(ctx)
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	key := fmt.Sprintf("leaderboard:%s:%d:%d:%s", q.CompanyID, q.From.Unix(), q.To.Unix(), q.Sort)
	return cache.Load(ctx, deps.Cache, key, ttl, load)
}

func normalizeLeaderboardQuery(q LeaderboardQuery, now time.Time) (LeaderboardQuery, error) {
	if q.Sort == "" {
		q.Sort = report.MetricConverted
	}
	if !report.IsValidMetric(q.Sort) {
		return q, report.ErrInvalidMetric
	}
	month := listutil.MonthWindow(now)
	switch {
	case q.From.IsZero() && q.To.IsZero():
		q.From, q.To = month.From, month.To
	case q.From.IsZero():
		q.From = q.To.AddDate(0, -1, 0)
	case q.To.IsZero():
		q.To = q.From.AddDate(0, 1, 0)
	}
	q.From, q.To = q.From.UTC(), q.To.UTC()
	if err := report.ValidateWindow(q.From, q.To); err != nil {
		return q, err
	}
	return q, nil
}

func buildLeaderboard(ctx context.Context, q LeaderboardQuery, deps GetLeaderboardDeps) (report.Leaderboard, error) {
	activity, err := deps.ReportStore.Activity(ctx, q.CompanyID, q.From, q.To)
	if err != nil {
		return report.Leaderboard{}, fmt.Errorf("leaderboard activity: %w", err)
	}
	accts, err := deps.AccountStore.ListByCompany(ctx, q.CompanyID)
	if err != nil {
		return report.Leaderboard{}, fmt.Errorf("leaderboard accounts: %w", err)
	}

	rows := make([]report.LeaderboardRow, 0, len(accts))
	for _, a := range accts {
		act, ok := activity[a.ID]
		if !ok {
			if a.Disabled {
				continue
			}
			act = &report.Activity{AccountID: a.ID}
		}
		rows = append(rows, report.LeaderboardRow{Name: a.Name, Email: a.Email, Role: a.Role, Activity: *act})
	}
	report.Rank(rows, q.Sort)
	return report.Leaderboard{From: q.From, To: q.To, Sort: q.Sort, Rows: rows, GeneratedAt: timeNow().UTC()}, nil
}

// LeaderboardColumns are the header cells of the leaderboard export.
var LeaderboardColumns = []string{
	"Rank", "Name", "Email", "Role", "Leads Created", "Leads Converted",
	"Follow-ups Completed", "Deals Won", "Revenue Won", "Visits Completed",
}

// LeaderboardSheet lays a leaderboard out as a worksheet.
func LeaderboardSheet(lb report.Leaderboard) spreadsheet.Sheet {
	rows := make([][]string, 0, len(lb.Rows))
	for _, r := range lb.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.Rank), r.Name, r.Email, r.Role,
			strconv.Itoa(r.LeadsCreated), strconv.Itoa(r.LeadsConverted),
			strconv.Itoa(r.FollowUpsCompleted), strconv.Itoa(r.DealsWon),
			formatMoney(r.RevenueWon), strconv.Itoa(r.VisitsCompleted),
		})
	}
	return spreadsheet.Sheet{Name: "Leaderboard", Columns: LeaderboardColumns, Rows: rows}
}

// formatMoney renders minor units as a decimal amount with two places.
func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
