package db

import (
	"context"
	"database/sql"
)

// The unique index on external_subject is the only concurrency-safety
// mechanism the identity binder needs: concurrent first logins for the
// same subject collapse into one row via the upsert.
const migration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    external_subject text NOT NULL,
    email text NOT NULL,
    display_name text,
    avatar_url text,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT users_external_subject_unique UNIQUE (external_subject)
);

CREATE TABLE IF NOT EXISTS entries (
    id text PRIMARY KEY,
    owner_key text NOT NULL,
    created_at text NOT NULL,
    brew_date text NOT NULL,
    coffee_name text NOT NULL,
    roastery text,
    origin text,
    process text,
    brew_method text,
    grind_size text,
    water_temp double precision,
    dose double precision,
    yield_amount double precision,
    brew_time text,
    aroma jsonb NOT NULL DEFAULT '[]',
    flavor jsonb NOT NULL DEFAULT '[]',
    aftertaste jsonb NOT NULL DEFAULT '[]',
    defects jsonb NOT NULL DEFAULT '[]',
    acidity integer,
    sweetness integer,
    bitterness integer,
    body integer,
    balance integer,
    overall integer,
    notes text
);

CREATE INDEX IF NOT EXISTS entries_owner_key_idx
ON entries (owner_key);
`

// Migrate creates the schema on startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, migration)
	return err
}
