package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
        id UUID PRIMARY KEY,
        phone VARCHAR(20) NOT NULL UNIQUE,
        status VARCHAR(16) NOT NULL,
        trust_level VARCHAR(16) NOT NULL,
        phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
        sim_swap_risk BOOLEAN NOT NULL DEFAULT FALSE,
        alert_level VARCHAR(16) NOT NULL,
        failure VARCHAR(32) NOT NULL DEFAULT '',
        joined_at TIMESTAMPTZ NOT NULL,
        last_verified_at TIMESTAMPTZ,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS cards (
        id UUID PRIMARY KEY,
        profile_id UUID NOT NULL UNIQUE REFERENCES profiles(id),
        last4 CHAR(4) NOT NULL,
        expiry_month INT NOT NULL,
        expiry_year INT NOT NULL,
        allowance BIGINT NOT NULL,
        currency CHAR(3) NOT NULL,
        status VARCHAR(16) NOT NULL,
        device_id VARCHAR(64) NOT NULL DEFAULT '',
        issued_at TIMESTAMPTZ NOT NULL,
        last_used_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS card_transactions (
        id UUID PRIMARY KEY,
        card_id UUID NOT NULL REFERENCES cards(id),
        restaurant VARCHAR(120) NOT NULL,
        amount BIGINT NOT NULL,
        display_time VARCHAR(32) NOT NULL,
        verified BOOLEAN NOT NULL DEFAULT TRUE,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS card_transactions_card_created_idx
        ON card_transactions (card_id, created_at DESC)`,
}

// EnsureSchema creates the tables used by the Postgres repositories.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
