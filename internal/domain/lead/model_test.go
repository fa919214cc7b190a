package lead_test

import (
	"errors"
	"testing"
	"time"

	"crm/internal/domain/lead"
)

var now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func validLead() lead.Lead {
	return lead.Lead{
		CompanyID: "c1",
		Name:      "Priya Nair",
		Email:     "priya@globex.test",
		Source:    lead.SourceWebsite,
		Status:    lead.StatusNew,
	}
}

func TestLead_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *lead.Lead)
		wantErr error
	}{
		{name: "valid email only", mutate: func(l *lead.Lead) {}},
		{name: "valid phone only", mutate: func(l *lead.Lead) { l.Email = ""; l.Phone = "+64 21 555 0101" }},
		{name: "missing name", mutate: func(l *lead.Lead) { l.Name = "   " }, wantErr: lead.ErrEmptyName},
		{name: "no contact", mutate: func(l *lead.Lead) { l.Email = "" }, wantErr: lead.ErrNoContact},
		{name: "bad email", mutate: func(l *lead.Lead) { l.Email = "priya@" }, wantErr: lead.ErrInvalidEmail},
		{name: "display-name email", mutate: func(l *lead.Lead) { l.Email = "Priya <priya@globex.test>" }, wantErr: lead.ErrInvalidEmail},
		{name: "short phone", mutate: func(l *lead.Lead) { l.Phone = "12345" }, wantErr: lead.ErrInvalidPhone},
		{name: "letters in phone", mutate: func(l *lead.Lead) { l.Phone = "555-CALL-NOW" }, wantErr: lead.ErrInvalidPhone},
		{name: "unknown source", mutate: func(l *lead.Lead) { l.Source = "billboard" }, wantErr: lead.ErrInvalidSource},
		{name: "unknown status", mutate: func(l *lead.Lead) { l.Status = "WON" }, wantErr: lead.ErrInvalidStatus},
		{name: "negative value", mutate: func(l *lead.Lead) { l.EstimatedValue = -1 }, wantErr: lead.ErrNegativeValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLead()
			tt.mutate(&l)
			l.Normalize()
			if err := l.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+64 (21) 555-0101": "+64215550101",
		" 021.555.0101 ":    "0215550101",
		"12+34":             "12+34",
	}
	for in, want := range tests {
		if got := lead.NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestCanTransition covers the full status table.
func TestCanTransition(t *testing.T) {
	allowed := map[[2]string]bool{
		{lead.StatusNew, lead.StatusInProgress}:      true,
		{lead.StatusNew, lead.StatusCustomer}:        true,
		{lead.StatusNew, lead.StatusRejected}:        true,
		{lead.StatusInProgress, lead.StatusCustomer}: true,
		{lead.StatusInProgress, lead.StatusRejected}: true,
		{lead.StatusRejected, lead.StatusInProgress}: true,
	}
	for _, from := range lead.ValidStatuses {
		for _, to := range lead.ValidStatuses {
			want := allowed[[2]string{from, to}]
			if got := lead.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestLead_TransitionTo(t *testing.T) {
	t.Run("reject requires reason", func(t *testing.T) {
		l := validLead()
		if err := l.TransitionTo(lead.StatusRejected, " ", now); !errors.Is(err, lead.ErrReasonRequired) {
			t.Fatalf("got %v, want ErrReasonRequired", err)
		}
		if l.Status != lead.StatusNew {
			t.Errorf("status changed on failed transition: %s", l.Status)
		}
	})
	t.Run("reject then reopen clears reason", func(t *testing.T) {
		l := validLead()
		if err := l.TransitionTo(lead.StatusRejected, "budget", now); err != nil {
			t.Fatal(err)
		}
		if l.RejectionReason != "budget" {
			t.Errorf("RejectionReason = %q", l.RejectionReason)
		}
		if err := l.TransitionTo(lead.StatusInProgress, "", now); err != nil {
			t.Fatal(err)
		}
		if l.RejectionReason != "" {
			t.Errorf("RejectionReason not cleared: %q", l.RejectionReason)
		}
	})
	t.Run("convert sets ConvertedAt and is terminal", func(t *testing.T) {
		l := validLead()
		if err := l.TransitionTo(lead.StatusCustomer, "", now); err != nil {
			t.Fatal(err)
		}
		if !l.ConvertedAt.Equal(now) {
			t.Errorf("ConvertedAt = %v", l.ConvertedAt)
		}
		if l.IsOpen() {
			t.Error("converted lead should not be open")
		}
		err := l.TransitionTo(lead.StatusInProgress, "", now)
		if !errors.Is(err, lead.ErrInvalidTransition) {
			t.Errorf("got %v, want ErrInvalidTransition", err)
		}
	})
	t.Run("unknown status", func(t *testing.T) {
		l := validLead()
		if err := l.TransitionTo("LOST", "", now); !errors.Is(err, lead.ErrInvalidStatus) {
			t.Errorf("got %v, want ErrInvalidStatus", err)
		}
	})
}
