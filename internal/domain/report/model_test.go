package report_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"crm/internal/domain/report"
)

func row(id, name string, converted int, revenue int64) report.LeaderboardRow {
	return report.LeaderboardRow{
		Name:     name,
		Activity: report.Activity{AccountID: id, LeadsConverted: converted, RevenueWon: revenue},
	}
}

// TestRank verifies ties share a rank and are ordered by name.
func TestRank(t *testing.T) {
	rows := []report.LeaderboardRow{
		row("e1", "zoe", 2, 100),
		row("e2", "Adam", 5, 0),
		row("e3", "bea", 2, 900),
		row("e4", "Carl", 0, 50),
	}
	report.Rank(rows, report.MetricConverted)

	type ranked struct {
		ID   string
		Rank int
	}
	var got []ranked
	for _, r := range rows {
		got = append(got, ranked{r.AccountID, r.Rank})
	}
	want := []ranked{{"e2", 1}, {"e3", 2}, {"e1", 2}, {"e4", 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}

	report.Rank(rows, report.MetricRevenue)
	if rows[0].AccountID != "e3" || rows[0].Rank != 1 {
		t.Errorf("revenue leader = %+v", rows[0])
	}
	if rows[3].AccountID != "e2" || rows[3].Rank != 4 {
		t.Errorf("revenue last = %+v", rows[3])
	}
}

func TestValidateWindow(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		to      time.Time
		wantErr error
	}{
		{name: "month", to: from.AddDate(0, 1, 0)},
		{name: "366 days", to: from.Add(report.MaxWindow)},
		{name: "too long", to: from.Add(report.MaxWindow + time.Second), wantErr: report.ErrWindowTooLong},
		{name: "empty", to: from, wantErr: report.ErrEmptyWindow},
		{name: "reversed", to: from.Add(-time.Hour), wantErr: report.ErrEmptyWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := report.ValidateWindow(from, tt.to); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateWindow() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidMetricAndKind(t *testing.T) {
	if !report.IsValidMetric("revenue") || report.IsValidMetric("salary") {
		t.Error("metric validation wrong")
	}
	if !report.IsValidKind("payments") || report.IsValidKind("invoices") {
		t.Error("kind validation wrong")
	}
}
