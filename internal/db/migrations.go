package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Statements run in order on every start and must stay idempotent.
var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM ('PENDING', 'AWAITING_SIGNATURES', 'SIGNED', 'ACTIVE', 'TERMINATED', 'REVOKED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id BIGSERIAL PRIMARY KEY,
		verification_token VARCHAR(64) NOT NULL,
		content_hash VARCHAR(64),
		hash_generated_at TIMESTAMPTZ,
		hash_ip VARCHAR(64),
		property_id BIGINT NOT NULL REFERENCES properties(id),
		tenant_id BIGINT NOT NULL REFERENCES users(id),
		owner_id BIGINT NOT NULL REFERENCES users(id),
		agency_id BIGINT,
		witness_name TEXT,
		witness_document VARCHAR(32),
		contract_type VARCHAR(32) NOT NULL,
		status contract_status NOT NULL DEFAULT 'PENDING',
		monthly_rent NUMERIC(14,2) NOT NULL DEFAULT 0,
		deposit NUMERIC(14,2) NOT NULL DEFAULT 0,
		due_day INT NOT NULL DEFAULT 0,
		start_date DATE,
		end_date DATE,
		readjustment_index VARCHAR(32),
		readjustment_month INT NOT NULL DEFAULT 0,
		late_fee_percent NUMERIC(6,2) NOT NULL DEFAULT 0,
		interest_rate_percent NUMERIC(6,2) NOT NULL DEFAULT 0,
		early_termination_penalty_percent NUMERIC(6,2) NOT NULL DEFAULT 0,
		guarantee_type VARCHAR(32),
		jurisdiction TEXT,
		clauses TEXT,
		content_snapshot TEXT,
		final_content TEXT,
		provisional_pdf_ref VARCHAR(128),
		final_pdf_ref VARCHAR(128),
		amends_contract_id BIGINT REFERENCES contracts(id),
		admin_notes TEXT,
		revocation_reason TEXT,
		signed_at TIMESTAMPTZ,
		created_by_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	);`,
	`DO $$
	DECLARE
		role TEXT;
	BEGIN
		FOREACH role IN ARRAY ARRAY['tenant', 'owner', 'agency', 'witness'] LOOP
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I TEXT', role || '_sig_image');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I TIMESTAMPTZ', role || '_sig_signed_at');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I VARCHAR(64)', role || '_sig_ip');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I TEXT', role || '_sig_user_agent');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I DOUBLE PRECISION', role || '_sig_latitude');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I DOUBLE PRECISION', role || '_sig_longitude');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I BOOLEAN NOT NULL DEFAULT FALSE', role || '_sig_geo_consent');
			EXECUTE format('ALTER TABLE contracts ADD COLUMN IF NOT EXISTS %I BIGINT', role || '_sig_signer_id');
		END LOOP;
	END
	$$;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_verification_token ON contracts (verification_token);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_open_property ON contracts (property_id)
		WHERE status NOT IN ('REVOKED', 'TERMINATED') AND deleted_at IS NULL AND amends_contract_id IS NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_open_amendment ON contracts (amends_contract_id)
		WHERE amends_contract_id IS NOT NULL AND deleted_at IS NULL AND status IN ('PENDING', 'AWAITING_SIGNATURES');`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_tenant_id ON contracts (tenant_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_owner_id ON contracts (owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_agency_id ON contracts (agency_id) WHERE agency_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (status);`,
	`CREATE TABLE IF NOT EXISTS lifecycle_events (
		id UUID PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		event_type VARCHAR(64) NOT NULL,
		description TEXT NOT NULL,
		metadata JSONB,
		created_by VARCHAR(64) NOT NULL,
		effect_kind VARCHAR(32),
		effect_amount NUMERIC(14,2),
		effect_currency VARCHAR(16),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_contract ON lifecycle_events (contract_id, created_at);`,
	`CREATE OR REPLACE FUNCTION lifecycle_events_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'lifecycle_events is append-only';
	END
	$$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS trg_lifecycle_events_append_only ON lifecycle_events;`,
	`CREATE TRIGGER trg_lifecycle_events_append_only BEFORE UPDATE OR DELETE ON lifecycle_events
		FOR EACH ROW EXECUTE FUNCTION lifecycle_events_append_only();`,
	`CREATE TABLE IF NOT EXISTS contract_clause_history (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		previous_clauses TEXT,
		edited_by BIGINT NOT NULL,
		edited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ip VARCHAR(64)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_clause_history_contract ON contract_clause_history (contract_id, edited_at);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT REFERENCES contracts(id),
		due_date DATE NOT NULL,
		original_value NUMERIC(14,2) NOT NULL,
		paid_value NUMERIC(14,2) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'OPEN'
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_contract_status ON invoices (contract_id, status);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT REFERENCES contracts(id),
		amount NUMERIC(14,2) NOT NULL,
		paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS inspections (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT REFERENCES contracts(id),
		notes TEXT,
		inspected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		event VARCHAR(64) NOT NULL,
		channel VARCHAR(32) NOT NULL,
		recipient TEXT NOT NULL,
		payload JSONB,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_contract ON notifications (contract_id, sent_at);`,
	`CREATE TABLE IF NOT EXISTS signature_links (
		id UUID PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		signer_role VARCHAR(16) NOT NULL,
		contact TEXT NOT NULL,
		token VARCHAR(64) NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_signature_links_contract ON signature_links (contract_id) WHERE revoked_at IS NULL;`,
	`CREATE TABLE IF NOT EXISTS contract_documents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		stage VARCHAR(16) NOT NULL,
		content_type VARCHAR(64) NOT NULL,
		content BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_documents_contract ON contract_documents (contract_id, stage);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
