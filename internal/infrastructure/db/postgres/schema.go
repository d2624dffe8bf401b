package postgres

import "context"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS registry_records (
  id             BIGSERIAL PRIMARY KEY,
  serial_id      TEXT NOT NULL,
  category       TEXT NOT NULL,
  first_name     TEXT NOT NULL,
  last_name      TEXT NOT NULL,
  birth_date     DATE NOT NULL,
  control_number TEXT
)`,
	`CREATE INDEX IF NOT EXISTS registry_records_serial_idx
  ON registry_records (UPPER(TRIM(serial_id)))`,

	`CREATE TABLE IF NOT EXISTS profiles (
  id             UUID PRIMARY KEY,
  registry_id    BIGINT NOT NULL REFERENCES registry_records (id),
  category       TEXT NOT NULL,
  affiliation    TEXT,
  relationship   TEXT,
  principal_name TEXT,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT profiles_registry_id_key UNIQUE (registry_id)
)`,

	`CREATE TABLE IF NOT EXISTS credentials (
  id            UUID PRIMARY KEY,
  profile_id    UUID NOT NULL REFERENCES profiles (id) ON DELETE CASCADE,
  email         TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  status        TEXT NOT NULL DEFAULT 'unverified'
                CHECK (status IN ('unverified', 'active', 'suspended')),
  last_login_at TIMESTAMPTZ,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT credentials_profile_id_key UNIQUE (profile_id),
  CONSTRAINT credentials_email_key UNIQUE (email)
)`,

	`CREATE TABLE IF NOT EXISTS signup_tokens (
  token      TEXT PRIMARY KEY,
  payload    JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS signup_tokens_expires_at_idx ON signup_tokens (expires_at)`,
}

// EnsureSchema creates the tables the service needs if they are missing.
func EnsureSchema(ctx context.Context, gw *Gateway) error {
	for _, stmt := range schema {
		if _, err := gw.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
