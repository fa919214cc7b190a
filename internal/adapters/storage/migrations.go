package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// migration is one schema version. Each statement runs on its own so the
// same list works on SQLite and Postgres drivers alike.
type migration struct {
	version    int
	name       string
	statements []string
}

// migrations lists every schema version in order. Append only.
var migrations = []migration{
	{
		version: 1,
		name:    "tenants_and_accounts",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS company (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL,
				phone TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS account (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				phone TEXT NOT NULL DEFAULT '',
				designation TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				password_hash TEXT NOT NULL DEFAULT '',
				is_active INTEGER NOT NULL DEFAULT 1,
				disabled INTEGER NOT NULL DEFAULT 0,
				failed_login_attempts INTEGER NOT NULL DEFAULT 0,
				last_login_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_account_company ON account (company_id, role)`,
			`CREATE TABLE IF NOT EXISTS otp (
				email TEXT PRIMARY KEY,
				id TEXT NOT NULL,
				code_hash TEXT NOT NULL,
				expires_at TEXT NOT NULL,
				verified INTEGER NOT NULL DEFAULT 0,
				attempts INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "pipeline",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS lead (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				name TEXT NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				organization TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL,
				requirement TEXT NOT NULL DEFAULT '',
				estimated_value BIGINT NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				assigned_to TEXT NOT NULL DEFAULT '',
				created_by TEXT NOT NULL,
				rejection_reason TEXT NOT NULL DEFAULT '',
				customer_id TEXT NOT NULL DEFAULT '',
				converted_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_lead_company_status ON lead (company_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_lead_company_assignee ON lead (company_id, assigned_to)`,
			`CREATE INDEX IF NOT EXISTS idx_lead_company_email ON lead (company_id, email)`,
			`CREATE INDEX IF NOT EXISTS idx_lead_company_phone ON lead (company_id, phone)`,
			`CREATE TABLE IF NOT EXISTS follow_up (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				lead_id TEXT NOT NULL,
				assigned_to TEXT NOT NULL,
				scheduled_at TEXT NOT NULL,
				mode TEXT NOT NULL,
				note TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				outcome TEXT NOT NULL DEFAULT '',
				completed_at TEXT,
				created_by TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_follow_up_company_due ON follow_up (company_id, status, scheduled_at)`,
			`CREATE INDEX IF NOT EXISTS idx_follow_up_lead ON follow_up (lead_id)`,
		},
	},
	{
		version: 3,
		name:    "customers_deals_ams",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS customer (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				name TEXT NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				organization TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				tax_id TEXT NOT NULL DEFAULT '',
				lead_id TEXT NOT NULL DEFAULT '',
				account_manager TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_customer_company ON customer (company_id, name)`,
			`CREATE TABLE IF NOT EXISTS deal (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				customer_id TEXT NOT NULL,
				title TEXT NOT NULL,
				value BIGINT NOT NULL,
				balance BIGINT NOT NULL,
				status TEXT NOT NULL,
				owner_id TEXT NOT NULL,
				expected_close_at TEXT,
				closed_at TEXT,
				notes TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_deal_company_status ON deal (company_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_deal_customer ON deal (customer_id)`,
			`CREATE TABLE IF NOT EXISTS deal_payment (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				deal_id TEXT NOT NULL,
				amount BIGINT NOT NULL,
				paid_at TEXT NOT NULL,
				method TEXT NOT NULL DEFAULT '',
				reference TEXT NOT NULL DEFAULT '',
				recorded_by TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_deal_payment_deal ON deal_payment (deal_id)`,
			`CREATE TABLE IF NOT EXISTS ams_visit (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				customer_id TEXT NOT NULL,
				deal_id TEXT NOT NULL DEFAULT '',
				assigned_to TEXT NOT NULL,
				service_type TEXT NOT NULL,
				frequency TEXT NOT NULL,
				contract_start TEXT NOT NULL,
				contract_end TEXT NOT NULL,
				scheduled_for TEXT NOT NULL,
				status TEXT NOT NULL,
				remarks TEXT NOT NULL DEFAULT '',
				completed_at TEXT,
				previous_visit_id TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ams_visit_company_due ON ams_visit (company_id, status, scheduled_for)`,
			`CREATE INDEX IF NOT EXISTS idx_ams_visit_customer ON ams_visit (customer_id)`,
		},
	},
	{
		version: 4,
		name:    "audit_and_outbox",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS audit_event (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				occurred_at TEXT NOT NULL,
				category TEXT NOT NULL,
				action TEXT NOT NULL,
				severity TEXT NOT NULL,
				actor_id TEXT NOT NULL DEFAULT '',
				actor_email TEXT NOT NULL DEFAULT '',
				actor_role TEXT NOT NULL DEFAULT '',
				resource_type TEXT NOT NULL DEFAULT '',
				resource_id TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_event_company_time ON audit_event (company_id, occurred_at)`,
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL DEFAULT '',
				action_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_attempted_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				external_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, created_at)`,
		},
	},
}

// LatestSchemaVersion returns the highest migration version known to this binary.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the highest applied migration version (0 for a fresh database).
func SchemaVersion(ctx context.Context, db SQLDB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// MigrateDB applies every pending migration in order.
// PRE: db is a valid connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(ctx context.Context, db SQLDB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for i, stmt := range m.statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d (%s) statement %d: %w", m.version, m.name, i+1, err)
			}
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.version, m.name, FormatTime(time.Now())); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		slog.Info("schema_migrated", "version", m.version, "name", m.name)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db SQLDB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}
