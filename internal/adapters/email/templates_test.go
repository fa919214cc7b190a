package email_test

import (
	"context"
	"strings"
	"testing"

	"crm/internal/adapters/email"
)

func TestRender_OTP(t *testing.T) {
	subject, html, err := email.Render(email.TemplateOTP, email.OTPData{Name: "Ana", Code: "042917", Minutes: 10})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if subject != "Your password reset code" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(html, "<strong>042917</strong>") {
		t.Errorf("html missing bold code: %s", html)
	}
	if !strings.Contains(html, "10 minutes") {
		t.Errorf("html missing expiry: %s", html)
	}
}

func TestRender_EscapesRawHTML(t *testing.T) {
	_, html, err := email.Render(email.TemplateWelcome, email.WelcomeData{
		Name: "<script>alert(1)</script>", Company: "Acme", Email: "a@acme.test", LoginURL: "https://crm.test/login",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw html not escaped: %s", html)
	}
	if !strings.Contains(html, `<a href="https://crm.test/login">`) {
		t.Errorf("login link missing: %s", html)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, _, err := email.Render("invoice", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestCompose(t *testing.T) {
	req, err := email.Compose("ana@example.com", email.TemplateOTP, email.OTPData{Code: "1"})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if len(req.To) != 1 || req.To[0] != "ana@example.com" || req.Subject == "" || req.HTML == "" {
		t.Errorf("Compose() = %+v", req)
	}
}

func TestNoopSender(t *testing.T) {
	res, err := email.NewNoopSender().Send(context.Background(), email.SendRequest{To: []string{"a@b.c"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.HasPrefix(res.MessageID, "noop-") || res.SentAt.IsZero() {
		t.Errorf("Send() = %+v", res)
	}
}
