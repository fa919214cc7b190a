package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	web "crm/internal/adapters/http"
	"crm/internal/application/orchestrators"
)

var companyInput orchestrators.RegisterCompanyInput

// createCompanyCmd bootstraps a tenant from the shell, e.g. before self sign-up is opened.
var createCompanyCmd = &cobra.Command{
	Use:   "create-company",
	Short: "Register a company and its first admin account",
	Example: `  CRM_ADMIN_PASSWORD=... crm create-company \
    --name "Acme Ltd" --email office@acme.example \
    --admin-name "Jo Admin" --admin-email jo@acme.example`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if companyInput.AdminPassword == "" {
			companyInput.AdminPassword = os.Getenv("CRM_ADMIN_PASSWORD")
		}
		if companyInput.AdminPassword == "" {
			return errors.New("admin password is required: pass --admin-password or set CRM_ADMIN_PASSWORD")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer db.Close()

		stores := web.NewSQLStores(db)
		result, err := orchestrators.ExecuteRegisterCompany(cmd.Context(), companyInput, orchestrators.RegisterCompanyDeps{
			CompanyStore: stores.CompanyStore,
			AccountStore: stores.AccountStore,
			Audit:        stores.AuditStore,
		})
		if err != nil {
			return fmt.Errorf("register company: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "company %s (%s)\nadmin   %s (%s)\n",
			result.Company.Name, result.Company.ID, result.Admin.Email, result.Admin.ID)
		return nil
	},
}

func init() {
	f := createCompanyCmd.Flags()
	f.StringVar(&companyInput.CompanyName, "name", "", "company name")
	f.StringVar(&companyInput.CompanyEmail, "email", "", "company contact email")
	f.StringVar(&companyInput.CompanyPhone, "phone", "", "company phone")
	f.StringVar(&companyInput.CompanyAddress, "address", "", "company address")
	f.StringVar(&companyInput.AdminName, "admin-name", "", "admin display name")
	f.StringVar(&companyInput.AdminEmail, "admin-email", "", "admin login email")
	f.StringVar(&companyInput.AdminPhone, "admin-phone", "", "admin phone")
	f.StringVar(&companyInput.AdminPassword, "admin-password", "", "admin password (prefer CRM_ADMIN_PASSWORD)")
	createCompanyCmd.MarkFlagRequired("name")
	createCompanyCmd.MarkFlagRequired("admin-email")
}
