package company_test

import (
	"errors"
	"strings"
	"testing"

	"crm/internal/domain/company"
)

func TestCompany_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       company.Company
		wantErr error
	}{
		{name: "valid", c: company.Company{Name: "Acme", Email: "ops@acme.test"}},
		{name: "missing name", c: company.Company{Name: " ", Email: "ops@acme.test"}, wantErr: company.ErrEmptyName},
		{name: "long name", c: company.Company{Name: strings.Repeat("a", 201), Email: "ops@acme.test"}, wantErr: company.ErrNameTooLong},
		{name: "bad email", c: company.Company{Name: "Acme", Email: "acme"}, wantErr: company.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
